package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"acey/internal/blobstore"
	"acey/internal/models"
)

func newTestOrchestrator(dispatcher *Dispatcher, learning *LearningService) *OrchestratorService {
	return NewOrchestratorService(
		NewIntentClassifier(),
		NewSkillRegistry(),
		NewAccessController(&fakeEntitlements{}),
		dispatcher,
		NewPreviewGenerator(blobstore.New(time.Minute)),
		NewResponseComposer(),
		learning,
		nil,
		nil,
	)
}

func orchestratorMessage(id, content string) *models.UserMessage {
	return &models.UserMessage{ID: id, Content: content, UserID: "user-1", Timestamp: time.Now()}
}

func TestProcessMessage_GeneralFallback(t *testing.T) {
	svc := newTestOrchestrator(newTestDispatcher(), NewLearningService(nil))

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	resp, err := svc.ProcessMessage(context.Background(), orchestratorMessage("m1", "good morning"), user)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	if resp.Metadata.ResponseType != ResponseTypeGeneral {
		t.Errorf("Expected general response, got %s", resp.Metadata.ResponseType)
	}
	if len(resp.Metadata.SkillsUsed) != 1 || resp.Metadata.SkillsUsed[0] != "general_chat" {
		t.Errorf("Expected general_chat used, got %v", resp.Metadata.SkillsUsed)
	}
	if resp.Learning == nil {
		t.Error("Expected a learning record on a successful dispatch")
	}
}

func TestProcessMessage_DeniedSkillReturnsLockedResponse(t *testing.T) {
	svc := newTestOrchestrator(newTestDispatcher(), NewLearningService(nil))

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	resp, err := svc.ProcessMessage(context.Background(), orchestratorMessage("m1", "Generate an image of a dragon"), user)
	if err != nil {
		t.Fatalf("Denial must not surface as an error: %v", err)
	}

	if resp.Metadata.ResponseType != ResponseTypeLocked {
		t.Errorf("Expected locked response, got %s", resp.Metadata.ResponseType)
	}
	if !strings.HasPrefix(resp.Content, "🔒 Image Creator is locked. Requires Pro tier or higher") {
		t.Errorf("Unexpected locked content: %q", resp.Content)
	}
	if len(resp.Previews) != 0 {
		t.Error("Locked response must carry no previews")
	}
	if resp.Learning != nil {
		t.Error("Denied message should not produce a learning record")
	}
}

func TestProcessMessage_ImagePipelineEndToEnd(t *testing.T) {
	learning := NewLearningService(nil)
	svc := newTestOrchestrator(newTestDispatcher(), learning)

	user := &models.User{ID: "user-1", TierID: models.TierPro, InstalledSkillIDs: []string{"image_creator"}}
	resp, err := svc.ProcessMessage(context.Background(), orchestratorMessage("m1", "Generate an image of a dragon"), user)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	if resp.Metadata.ResponseType != ResponseTypeImage {
		t.Errorf("Expected image response, got %s", resp.Metadata.ResponseType)
	}
	if len(resp.Previews) != 1 || resp.Previews[0].Kind != models.PreviewKindImage {
		t.Fatalf("Expected one image preview, got %v", resp.Previews)
	}
	if resp.Learning == nil || resp.Learning.SkillID != "image_creator" {
		t.Errorf("Expected learning record for image_creator, got %v", resp.Learning)
	}

	perms := map[string]bool{}
	for _, p := range resp.Metadata.Permissions {
		perms[p] = true
	}
	if !perms["chat:respond"] || !perms["media:generate_image"] {
		t.Errorf("Expected granted permissions carried on response, got %v", resp.Metadata.Permissions)
	}
}

func TestProcessMessage_HandlerFailureAbortsOnlyThatMessage(t *testing.T) {
	dispatcher := newTestDispatcher()
	dispatcher.RegisterHandler(models.ModuleGameEngine, func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		// Crash instead of erroring: the pipeline must contain the panic
		panic("game backend crashed")
	})
	svc := newTestOrchestrator(dispatcher, NewLearningService(nil))

	user := &models.User{ID: "user-1", TierID: models.TierFree}

	var wg sync.WaitGroup
	var gameErr, chatErr error
	var chatResp *models.OrchestratorResponse

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, gameErr = svc.ProcessMessage(context.Background(), orchestratorMessage("m-game", "let's play a game"), user)
	}()
	go func() {
		defer wg.Done()
		chatResp, chatErr = svc.ProcessMessage(context.Background(), orchestratorMessage("m-chat", "good morning"), user)
	}()
	wg.Wait()

	if gameErr == nil {
		t.Error("Expected the crashing handler to abort its own message")
	} else if !strings.Contains(gameErr.Error(), "crashed") {
		t.Errorf("Expected crash error, got %v", gameErr)
	}
	if chatErr != nil {
		t.Fatalf("Concurrent healthy message must complete: %v", chatErr)
	}
	if chatResp == nil || chatResp.Metadata.ResponseType != ResponseTypeGeneral {
		t.Errorf("Expected the healthy message's normal response, got %v", chatResp)
	}
}

func TestProcessMessage_DispatchErrorPropagates(t *testing.T) {
	handlerErr := errors.New("chat backend unavailable")
	dispatcher := newTestDispatcher()
	dispatcher.RegisterHandler(models.ModuleGeneralChat, func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		return nil, handlerErr
	})
	svc := newTestOrchestrator(dispatcher, NewLearningService(nil))

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	_, err := svc.ProcessMessage(context.Background(), orchestratorMessage("m1", "hello"), user)
	if err == nil {
		t.Fatal("Expected dispatch error to propagate")
	}
	// The handler's error comes back to the caller as-is
	if !errors.Is(err, handlerErr) {
		t.Errorf("Expected handler error unmodified, got %v", err)
	}
}

func TestProcessMessageObserved_StageEvents(t *testing.T) {
	svc := newTestOrchestrator(newTestDispatcher(), NewLearningService(nil))

	var mu sync.Mutex
	var stages []string
	observer := func(stage string, data any) {
		mu.Lock()
		stages = append(stages, stage)
		mu.Unlock()
	}

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	_, err := svc.ProcessMessageObserved(context.Background(), orchestratorMessage("m1", "good morning"), user, observer)
	if err != nil {
		t.Fatalf("ProcessMessageObserved failed: %v", err)
	}

	want := []string{StageClassified, StageAuthorized, StageDispatched, StageComposed}
	if len(stages) != len(want) {
		t.Fatalf("Expected stages %v, got %v", want, stages)
	}
	for i, stage := range want {
		if stages[i] != stage {
			t.Errorf("Stage %d: got %s, want %s", i, stages[i], stage)
		}
	}
}

func TestProcessMessageObserved_DeniedStageEvent(t *testing.T) {
	svc := newTestOrchestrator(newTestDispatcher(), NewLearningService(nil))

	var stages []string
	observer := func(stage string, data any) {
		stages = append(stages, stage)
	}

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	_, err := svc.ProcessMessageObserved(context.Background(), orchestratorMessage("m1", "Generate an image of a dragon"), user, observer)
	if err != nil {
		t.Fatalf("ProcessMessageObserved failed: %v", err)
	}

	want := []string{StageClassified, StageDenied}
	if len(stages) != len(want) || stages[0] != want[0] || stages[1] != want[1] {
		t.Errorf("Expected stages %v, got %v", want, stages)
	}
}

func TestProcessMessage_LearningMetricsTrackOutcome(t *testing.T) {
	learning := NewLearningService(nil)
	svc := newTestOrchestrator(newTestDispatcher(), learning)

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	for i := 0; i < 3; i++ {
		if _, err := svc.ProcessMessage(context.Background(), orchestratorMessage("m", "good morning"), user); err != nil {
			t.Fatalf("ProcessMessage failed: %v", err)
		}
	}

	metrics := learning.PatternMetrics()
	metric, ok := metrics["general_chat_text"]
	if !ok {
		t.Fatalf("Expected general_chat_text pattern metric, got %v", metrics)
	}
	if metric.UsageCount != 3 {
		t.Errorf("Expected usage count 3, got %d", metric.UsageCount)
	}
}

func TestSummarize_TruncatesOnRuneBoundary(t *testing.T) {
	intent := models.Intent{Type: models.IntentGeneral, Confidence: 1}

	short := summarize(orchestratorMessage("m1", "hello"), intent)
	if short != "general: hello" {
		t.Errorf("Expected untruncated summary, got %q", short)
	}

	// Multibyte runes positioned so a byte-offset cut would split one
	long := "a" + strings.Repeat("日", 60)
	got := summarize(orchestratorMessage("m2", long), intent)
	if !utf8.ValidString(got) {
		t.Errorf("Truncated summary is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected truncated summary to end with ellipsis, got %q", got)
	}
	if len(got) > len("general: ")+120 {
		t.Errorf("Expected summary content capped at 120 bytes, got %d", len(got))
	}
}

// recordingTracker captures usage events for inspection
type recordingTracker struct {
	mu     sync.Mutex
	events []UsageEvent
}

func (r *recordingTracker) TrackPipelineOutcome(ctx context.Context, event UsageEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func TestProcessMessage_UsageEventCarriesModuleID(t *testing.T) {
	tracker := &recordingTracker{}
	svc := NewOrchestratorService(
		NewIntentClassifier(),
		NewSkillRegistry(),
		NewAccessController(&fakeEntitlements{}),
		newTestDispatcher(),
		NewPreviewGenerator(blobstore.New(time.Minute)),
		NewResponseComposer(),
		NewLearningService(nil),
		tracker,
		nil,
	)

	user := &models.User{ID: "user-1", TierID: models.TierFree}
	if _, err := svc.ProcessMessage(context.Background(), orchestratorMessage("m1", "good morning"), user); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if len(tracker.events) != 1 {
		t.Fatalf("Expected 1 usage event, got %d", len(tracker.events))
	}
	event := tracker.events[0]
	if event.ModuleID != models.ModuleGeneralChat {
		t.Errorf("Expected module %s, got %q", models.ModuleGeneralChat, event.ModuleID)
	}
	if event.SkillID != "general_chat" {
		t.Errorf("Expected skill general_chat, got %q", event.SkillID)
	}
}
