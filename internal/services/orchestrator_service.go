package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"acey/internal/logging"
	"acey/internal/models"

	"github.com/google/uuid"
)

// PipelineObserver receives stage events while a message is processed.
// Used by the WebSocket surface to stream progress; may be nil.
type PipelineObserver func(stage string, data any)

// Pipeline stage event names
const (
	StageClassified = "classified"
	StageAuthorized = "authorized"
	StageDenied     = "denied"
	StageDispatched = "dispatched"
	StageComposed   = "composed"
)

// OrchestratorService runs the full message pipeline: classify, authorize,
// dispatch, preview, compose, then feed the outcome into the learning loop.
// All collaborating stores are injected at construction; the service holds
// no package-level state.
type OrchestratorService struct {
	classifier *IntentClassifier
	registry   *SkillRegistry
	access     *AccessController
	dispatcher *Dispatcher
	previews   *PreviewGenerator
	composer   *ResponseComposer
	learning   *LearningService
	usage      UsageTracker
	metrics    *Metrics
}

// NewOrchestratorService wires the pipeline stages together
func NewOrchestratorService(
	classifier *IntentClassifier,
	registry *SkillRegistry,
	access *AccessController,
	dispatcher *Dispatcher,
	previews *PreviewGenerator,
	composer *ResponseComposer,
	learning *LearningService,
	usage UsageTracker,
	metrics *Metrics,
) *OrchestratorService {
	return &OrchestratorService{
		classifier: classifier,
		registry:   registry,
		access:     access,
		dispatcher: dispatcher,
		previews:   previews,
		composer:   composer,
		learning:   learning,
		usage:      usage,
		metrics:    metrics,
	}
}

// ProcessMessage runs one message through the pipeline
func (s *OrchestratorService) ProcessMessage(ctx context.Context, msg *models.UserMessage, user *models.User) (*models.OrchestratorResponse, error) {
	return s.ProcessMessageObserved(ctx, msg, user, nil)
}

// ProcessMessageObserved runs the pipeline and reports stage events to the
// observer. Permission denials terminate in a locked-feature response, never
// an error; configuration errors and dispatch failures propagate to the
// caller unmodified.
func (s *OrchestratorService) ProcessMessageObserved(ctx context.Context, msg *models.UserMessage, user *models.User, observe PipelineObserver) (*models.OrchestratorResponse, error) {
	start := time.Now()
	logger := logging.WithPipeline(msg.ID, user.ID)

	if s.metrics != nil {
		s.metrics.RecordPipelineRequest()
		defer func() {
			s.metrics.RecordPipelineLatency(time.Since(start).Seconds())
		}()
	}

	// 1. Classify. Absence of a confident match is a fallback, not an error.
	intent := s.classifier.Classify(msg.Content)
	logging.WithStage(logger, StageClassified).Debug("intent classified", "intent", intent.Type, "confidence", intent.Confidence)
	emit(observe, StageClassified, intent)

	// 2. Resolve against one registry snapshot for the whole request
	snapshot := s.registry.Snapshot()
	manifest := s.dispatcher.Resolve(snapshot, intent)
	if manifest == nil {
		// The general manifest is registered at startup; losing it is a deployment bug
		if s.metrics != nil {
			s.metrics.RecordPipelineError("configuration")
		}
		return nil, &ConfigurationError{SkillID: "general_chat"}
	}

	// 3. Authorize
	decision, err := s.access.Authorize(ctx, snapshot, user, []string{manifest.ID})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPipelineError("configuration")
		}
		return nil, err
	}
	if !decision.Allowed {
		if s.metrics != nil {
			s.metrics.RecordDenial(manifest.ID)
		}
		emit(observe, StageDenied, decision)

		locked := s.composer.LockedResponse(decision.SkillName, decision.Reason)
		return s.finish(ctx, msg, user, intent, manifest.ModuleID, nil, locked, nil, start), nil
	}
	emit(observe, StageAuthorized, decision.Permissions)

	// 4. Dispatch. Handler failures abort only this message's pipeline.
	result, err := s.dispatcher.Dispatch(ctx, manifest, intent, msg, user)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPipelineError("dispatch")
		}
		logging.WithStage(logger, StageDispatched).Error("dispatch failed", "module", manifest.ModuleID, "error", err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordDispatch(result.Metadata.ModuleID)
	}
	emit(observe, StageDispatched, result.Metadata)

	// 5-6. Preview and compose. Composition never fails.
	previews := s.previews.Generate(result)
	composed := s.composer.Compose(result, previews)
	emit(observe, StageComposed, composed.Metadata)

	// 7. Learning + usage tracking, off the response path
	var record *models.LearningRecord
	if s.learning != nil {
		record = s.learning.Record(result, summarize(msg, intent), pipelineSteps(intent, manifest), "")
	}

	return s.finish(ctx, msg, user, intent, result.Metadata.ModuleID, record, composed, decision.Permissions, start), nil
}

// finish assembles the outbound response and fires best-effort tracking
func (s *OrchestratorService) finish(ctx context.Context, msg *models.UserMessage, user *models.User, intent models.Intent, moduleID string, record *models.LearningRecord, composed *models.ComposedResponse, permissions []string, start time.Time) *models.OrchestratorResponse {
	skillsUsed := []string{}
	if record != nil {
		skillsUsed = []string{record.SkillID}
	}

	resp := &models.OrchestratorResponse{
		ID:       uuid.NewString(),
		Content:  composed.Content,
		Previews: composed.Previews,
		Metadata: models.OrchestratorResponseMetadata{
			SkillsUsed:       skillsUsed,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Permissions:      permissions,
			ResponseType:     composed.Metadata.ResponseType,
		},
		Learning: record,
	}

	if s.usage != nil {
		skillID := ""
		if len(skillsUsed) > 0 {
			skillID = skillsUsed[0]
		}
		s.usage.TrackPipelineOutcome(ctx, UsageEvent{
			UserID:           user.ID,
			MessageID:        msg.ID,
			SkillID:          skillID,
			ModuleID:         moduleID,
			IntentType:       intent.Type,
			ResponseType:     composed.Metadata.ResponseType,
			ProcessingTimeMs: resp.Metadata.ProcessingTimeMs,
		})
	}

	return resp
}

func emit(observe PipelineObserver, stage string, data any) {
	if observe != nil {
		observe(stage, data)
	}
}

func summarize(msg *models.UserMessage, intent models.Intent) string {
	content := msg.Content
	if len(content) > 120 {
		cut := 117
		// Back up so the cut never lands inside a multibyte rune.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}
	return fmt.Sprintf("%s: %s", intent.Type, content)
}

func pipelineSteps(intent models.Intent, manifest *models.SkillManifest) []string {
	return []string{
		"classified as " + intent.Type,
		"authorized " + manifest.ID,
		"dispatched to " + manifest.ModuleID,
		"composed response",
	}
}
