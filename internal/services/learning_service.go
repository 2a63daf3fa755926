package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"acey/internal/database"
	"acey/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// contentTypeForModule infers the learning content type from a module ID
var contentTypeForModule = map[string]string{
	models.ModuleCodeAssistant: "code",
	models.ModuleImageCreator:  "image",
	models.ModuleAudioComposer: "audio",
	models.ModuleLinkReviewer:  "link_review",
	models.ModuleGameEngine:    "game",
	models.ModuleStreamManager: "stream",
	models.ModuleGeneralChat:   "text",
}

// LearningService records pipeline outcomes and maintains running
// success-rate/confidence statistics per skill/content-type pattern.
// The dataset is append-only; the pattern metrics map is the only mutable
// aggregate and is mutex guarded so concurrent pipelines can't lose updates.
// MongoDB persistence is best-effort: it must never fail the response path.
type LearningService struct {
	mongoDB *database.MongoDB

	mu      sync.RWMutex
	records []*models.LearningRecord
	byID    map[string]*models.LearningRecord
	metrics map[string]*models.PatternMetric
}

// NewLearningService creates a learning service. mongoDB may be nil for a
// purely in-memory dataset.
func NewLearningService(mongoDB *database.MongoDB) *LearningService {
	return &LearningService{
		mongoDB: mongoDB,
		byID:    make(map[string]*models.LearningRecord),
		metrics: make(map[string]*models.PatternMetric),
	}
}

// Record appends a learning record for a pipeline outcome and updates the
// pattern metric for its skill/content-type key. feedback may be empty.
func (s *LearningService) Record(result *models.SkillExecutionResult, summary string, steps []string, feedback string) *models.LearningRecord {
	skillID := "unknown"
	if len(result.SkillsUsed) > 0 {
		skillID = result.SkillsUsed[0]
	}

	contentType, ok := contentTypeForModule[result.Metadata.ModuleID]
	if !ok {
		contentType = "text"
	}

	record := &models.LearningRecord{
		ID:          newRecordID(),
		SkillID:     skillID,
		ContentType: contentType,
		Summary:     summary,
		StepsTaken:  steps,
		Feedback:    feedback,
		TrustScore:  models.TrustScoreFor(feedback),
		Timestamp:   time.Now(),
		Metadata: map[string]any{
			"module_id":          result.Metadata.ModuleID,
			"processing_time_ms": result.Metadata.ProcessingTimeMs,
		},
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	s.byID[record.ID] = record
	s.updateMetricLocked(record, result.Metadata.Confidence)
	s.mu.Unlock()

	s.persistRecord(record)

	return record
}

// updateMetricLocked applies the incremental average update for the record's
// pattern key. Old and new observations weigh equally; there is no recency
// decay.
func (s *LearningService) updateMetricLocked(record *models.LearningRecord, confidence float64) {
	key := record.PatternKey()
	confidence = models.Clamp01(confidence)

	isApprove := 0.0
	if record.Feedback == models.FeedbackApprove {
		isApprove = 1.0
	}

	metric, ok := s.metrics[key]
	if !ok {
		s.metrics[key] = &models.PatternMetric{
			SuccessRate:       isApprove,
			AverageConfidence: confidence,
			UsageCount:        1,
			LastUpdated:       time.Now(),
		}
		return
	}

	n := float64(metric.UsageCount)
	metric.SuccessRate = models.Clamp01((metric.SuccessRate*n + isApprove) / (n + 1))
	metric.AverageConfidence = models.Clamp01((metric.AverageConfidence*n + confidence) / (n + 1))
	metric.UsageCount++
	metric.LastUpdated = time.Now()
}

// AttachFeedback sets feedback on an existing record and adjusts its
// pattern's success rate in place.
func (s *LearningService) AttachFeedback(recordID, feedback string) (*models.LearningRecord, error) {
	if feedback != models.FeedbackApprove && feedback != models.FeedbackNeedsImprovement {
		return nil, fmt.Errorf("unknown feedback %q", feedback)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[recordID]
	if !ok {
		return nil, fmt.Errorf("learning record %s not found", recordID)
	}

	wasApprove := 0.0
	if record.Feedback == models.FeedbackApprove {
		wasApprove = 1.0
	}
	record.Feedback = feedback
	record.TrustScore = models.TrustScoreFor(feedback)

	isApprove := 0.0
	if feedback == models.FeedbackApprove {
		isApprove = 1.0
	}

	if metric, ok := s.metrics[record.PatternKey()]; ok && metric.UsageCount > 0 {
		n := float64(metric.UsageCount)
		metric.SuccessRate = models.Clamp01(metric.SuccessRate + (isApprove-wasApprove)/n)
		metric.LastUpdated = time.Now()
	}

	return record, nil
}

// PatternMetrics returns a copy of the metrics map
func (s *LearningService) PatternMetrics() map[string]models.PatternMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.PatternMetric, len(s.metrics))
	for key, metric := range s.metrics {
		out[key] = *metric
	}
	return out
}

// Stats summarizes the dataset
func (s *LearningService) Stats() models.LearningStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.LearningStats{
		TotalRecords: len(s.records),
		PatternCount: len(s.metrics),
	}

	trustSum := 0.0
	for _, record := range s.records {
		trustSum += record.TrustScore
		switch record.Feedback {
		case models.FeedbackApprove:
			stats.ApprovedCount++
		case models.FeedbackNeedsImprovement:
			stats.RejectedCount++
		default:
			stats.PendingCount++
		}
	}
	if len(s.records) > 0 {
		stats.AverageTrust = trustSum / float64(len(s.records))
	}

	for _, metric := range s.metrics {
		if metric.SuccessRate >= 0.7 {
			stats.EffectiveCount++
		}
	}

	return stats
}

// EffectivePatterns returns pattern keys whose success rate meets the floor
func (s *LearningService) EffectivePatterns(minSuccessRate float64) map[string]models.PatternMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.PatternMetric)
	for key, metric := range s.metrics {
		if metric.SuccessRate >= minSuccessRate {
			out[key] = *metric
		}
	}
	return out
}

// Search returns records whose summary, skill or content type contains the
// query (case-insensitive)
func (s *LearningService) Search(query string) []*models.LearningRecord {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.LearningRecord
	for _, record := range s.records {
		if strings.Contains(strings.ToLower(record.Summary), q) ||
			strings.Contains(strings.ToLower(record.SkillID), q) ||
			strings.Contains(strings.ToLower(record.ContentType), q) {
			out = append(out, record)
		}
	}
	return out
}

// LearningExport is the full dataset snapshot produced by ExportAll
type LearningExport struct {
	Records    []*models.LearningRecord        `json:"records"`
	Metrics    map[string]models.PatternMetric `json:"metrics"`
	ExportedAt time.Time                       `json:"exported_at"`
}

// ExportAll returns the entire dataset
func (s *LearningService) ExportAll() LearningExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export := LearningExport{
		Records:    make([]*models.LearningRecord, len(s.records)),
		Metrics:    make(map[string]models.PatternMetric, len(s.metrics)),
		ExportedAt: time.Now(),
	}
	copy(export.Records, s.records)
	for key, metric := range s.metrics {
		export.Metrics[key] = *metric
	}
	return export
}

// Clear wipes the in-memory dataset and metrics
func (s *LearningService) Clear() {
	s.mu.Lock()
	s.records = nil
	s.byID = make(map[string]*models.LearningRecord)
	s.metrics = make(map[string]*models.PatternMetric)
	s.mu.Unlock()

	log.Println("🧹 [LEARNING] Dataset cleared")
}

// FlushMetrics persists the current pattern metrics to MongoDB.
// Best-effort: failures are logged and swallowed.
func (s *LearningService) FlushMetrics(ctx context.Context) {
	if s.mongoDB == nil {
		return
	}

	metrics := s.PatternMetrics()
	coll := s.mongoDB.Collection(database.CollectionPatternMetrics)

	for key, metric := range metrics {
		filter := bson.M{"_id": key}
		update := bson.M{"$set": bson.M{
			"successRate":       metric.SuccessRate,
			"averageConfidence": metric.AverageConfidence,
			"usageCount":        metric.UsageCount,
			"lastUpdated":       metric.LastUpdated,
		}}
		opts := options.Update().SetUpsert(true)
		if _, err := coll.UpdateOne(ctx, filter, update, opts); err != nil {
			log.Printf("⚠️ [LEARNING] Failed to flush metric %s: %v", key, err)
		}
	}
}

// persistRecord inserts the record into MongoDB, swallowing any error
func (s *LearningService) persistRecord(record *models.LearningRecord) {
	if s.mongoDB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	coll := s.mongoDB.Collection(database.CollectionLearningRecords)
	if _, err := coll.InsertOne(ctx, record); err != nil {
		log.Printf("⚠️ [LEARNING] Failed to persist record %s: %v", record.ID, err)
	}
}

// newRecordID builds a unique, monotonically creatable record ID
func newRecordID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
