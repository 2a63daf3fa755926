package services

import (
	"context"
	"log"
	"time"

	"acey/internal/database"
)

// UsageTracker records pipeline outcomes for analytics.
type UsageTracker interface {
	TrackPipelineOutcome(ctx context.Context, event UsageEvent)
}

// UsageTrackingService records minimal usage events (non-invasive).
// Tracking calls swallow their own errors: analytics must never fail the
// primary response path.
type UsageTrackingService struct {
	mongoDB *database.MongoDB
}

// NewUsageTrackingService creates a usage tracking service
func NewUsageTrackingService(mongoDB *database.MongoDB) *UsageTrackingService {
	return &UsageTrackingService{mongoDB: mongoDB}
}

// UsageEvent is one recorded pipeline outcome
type UsageEvent struct {
	UserID           string    `bson:"userId"`
	MessageID        string    `bson:"messageId"`
	SkillID          string    `bson:"skillId"`
	ModuleID         string    `bson:"moduleId"`
	IntentType       string    `bson:"intentType"`
	ResponseType     string    `bson:"responseType"`
	ProcessingTimeMs int64     `bson:"processingTimeMs"`
	OccurredAt       time.Time `bson:"occurredAt"`
}

// TrackPipelineOutcome records one pipeline run. Errors are logged and dropped.
func (s *UsageTrackingService) TrackPipelineOutcome(ctx context.Context, event UsageEvent) {
	if s.mongoDB == nil {
		return // tracking disabled
	}

	event.OccurredAt = time.Now()

	coll := s.mongoDB.Collection(database.CollectionUsageEvents)
	if _, err := coll.InsertOne(ctx, event); err != nil {
		log.Printf("⚠️ [USAGE] Failed to track pipeline outcome: %v", err)
	}
}
