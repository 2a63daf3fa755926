package models

import "time"

// Feedback values a user can attach to an outcome
const (
	FeedbackApprove          = "approve"
	FeedbackNeedsImprovement = "needs_improvement"
)

// Trust scores derived from feedback
const (
	TrustApproved = 1.0
	TrustNeedsFix = 0.3
	TrustNeutral  = 0.5 // no feedback yet
)

// TrustScoreFor maps feedback to a trust score. Absent feedback is neutral,
// not a failure.
func TrustScoreFor(feedback string) float64 {
	switch feedback {
	case FeedbackApprove:
		return TrustApproved
	case FeedbackNeedsImprovement:
		return TrustNeedsFix
	default:
		return TrustNeutral
	}
}

// LearningRecord captures one pipeline outcome. Append-only; never mutated
// after creation except for attaching late user feedback.
type LearningRecord struct {
	ID          string         `bson:"_id" json:"id"`
	SkillID     string         `bson:"skillId" json:"skill_id"`
	ContentType string         `bson:"contentType" json:"content_type"`
	Summary     string         `bson:"summary" json:"summary"`
	StepsTaken  []string       `bson:"stepsTaken" json:"steps_taken"`
	Feedback    string         `bson:"feedback,omitempty" json:"feedback,omitempty"`
	TrustScore  float64        `bson:"trustScore" json:"trust_score"`
	Timestamp   time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata    map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// PatternKey returns the metrics key for this record
func (r *LearningRecord) PatternKey() string {
	return r.SkillID + "_" + r.ContentType
}

// PatternMetric is the running aggregate for one skill/content-type pair.
// UsageCount only increases; rates stay within [0,1].
type PatternMetric struct {
	SuccessRate       float64   `json:"success_rate"`
	AverageConfidence float64   `json:"average_confidence"`
	UsageCount        uint64    `json:"usage_count"`
	LastUpdated       time.Time `json:"last_updated"`
}

// LearningStats summarizes the whole dataset
type LearningStats struct {
	TotalRecords     int     `json:"total_records"`
	ApprovedCount    int     `json:"approved_count"`
	RejectedCount    int     `json:"rejected_count"`
	PendingCount     int     `json:"pending_count"`
	AverageTrust     float64 `json:"average_trust"`
	PatternCount     int     `json:"pattern_count"`
	EffectiveCount   int     `json:"effective_count"` // patterns at or above 0.7 success
}

// Clamp01 clamps confidence and trust values into [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
