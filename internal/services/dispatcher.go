package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"acey/internal/models"
)

// Intents below this confidence fall through to the general module
const lowConfidenceThreshold = 0.2

// ModuleHandler executes one skill module against a message. Handlers extract
// whatever structured input they need from the message and intent entities.
// A handler error propagates out of Dispatch unmodified: no retry, no partial
// result.
type ModuleHandler func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error)

// Dispatcher routes a classified intent to the handler registered for its
// skill's module. Adding a skill means registering a handler, never editing
// the dispatch table source.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]ModuleHandler // module ID -> handler
}

// NewDispatcher creates a dispatcher with the built-in module handlers,
// backed by the given content services
func NewDispatcher(code CodeAssistant, images ImageGenerator, audio AudioGenerator, links LinkAnalyzer) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]ModuleHandler)}

	d.RegisterHandler(models.ModuleCodeAssistant, codeHelpHandler(code))
	d.RegisterHandler(models.ModuleImageCreator, imageHandler(images))
	d.RegisterHandler(models.ModuleAudioComposer, audioHandler(audio))
	d.RegisterHandler(models.ModuleLinkReviewer, linkReviewHandler(links))
	d.RegisterHandler(models.ModuleGameEngine, gameHandler())
	d.RegisterHandler(models.ModuleStreamManager, streamHandler())
	d.RegisterHandler(models.ModuleGeneralChat, generalHandler())

	return d
}

// RegisterHandler binds a module ID to its handler, replacing any previous one
func (d *Dispatcher) RegisterHandler(moduleID string, handler ModuleHandler) {
	d.mu.Lock()
	d.handlers[moduleID] = handler
	d.mu.Unlock()
}

// Resolve maps an intent to the manifest that will serve it. Unmatched and
// low-confidence intents resolve to the general module's manifest. The same
// resolution feeds the access check and the dispatch, so both always agree.
func (d *Dispatcher) Resolve(snapshot *RegistrySnapshot, intent models.Intent) *models.SkillManifest {
	if intent.Type != models.IntentGeneral && intent.Confidence >= lowConfidenceThreshold {
		if manifest := snapshot.ForIntent(intent.Type); manifest != nil {
			return manifest
		}
	}
	return snapshot.ForIntent(models.IntentGeneral)
}

// Dispatch invokes the module serving the resolved manifest and stamps
// execution metadata (wall-clock processing time, intent confidence) onto
// the result.
func (d *Dispatcher) Dispatch(ctx context.Context, manifest *models.SkillManifest, intent models.Intent, msg *models.UserMessage, user *models.User) (result *models.SkillExecutionResult, err error) {
	if manifest == nil {
		return nil, &ConfigurationError{SkillID: "(no manifest for intent " + intent.Type + ")"}
	}

	d.mu.RLock()
	handler, ok := d.handlers[manifest.ModuleID]
	d.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{SkillID: manifest.ID}
	}

	// A crashing handler takes down only its own message, not the process
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [DISPATCH] Handler for %s panicked: %v", manifest.ModuleID, r)
			result = nil
			err = fmt.Errorf("module %s crashed: %v", manifest.ModuleID, r)
		}
	}()

	start := time.Now()
	data, err := handler(ctx, intent, msg, user)
	if err != nil {
		// Propagate unmodified; the caller owns retry policy
		return nil, err
	}

	log.Printf("⚙️ [DISPATCH] %s handled %s in %v", manifest.ModuleID, intent.Type, time.Since(start))

	return &models.SkillExecutionResult{
		SkillsUsed: []string{manifest.ID},
		Data:       data,
		Metadata: models.ExecutionMetadata{
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			ModuleID:         manifest.ModuleID,
			Confidence:       intent.Confidence,
		},
	}, nil
}

// Module payload types, consumed by the preview generator and composer

// CodeHelpData is the code module's output
type CodeHelpData struct {
	Question string       `json:"question"`
	Analysis CodeAnalysis `json:"analysis"`
}

// ImageData is the image module's output
type ImageData struct {
	Prompt string     `json:"prompt"`
	Asset  MediaAsset `json:"asset"`
}

// AudioData is the audio module's output
type AudioData struct {
	Description string     `json:"description"`
	Asset       MediaAsset `json:"asset"`
}

// LinkReviewData is the link-review module's output
type LinkReviewData struct {
	Review LinkAnalysis `json:"review"`
}

// GameData is the game module's output
type GameData struct {
	Game         string `json:"game"`
	Status       string `json:"status"`
	Instructions string `json:"instructions"`
}

// StreamData is the streaming module's output
type StreamData struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// GeneralData is the fallback module's output
type GeneralData struct {
	Message string `json:"message"`
}

func codeHelpHandler(assistant CodeAssistant) ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		analysis, err := assistant.Analyze(ctx, msg.Content)
		if err != nil {
			return nil, fmt.Errorf("code analysis failed: %w", err)
		}
		return CodeHelpData{Question: msg.Content, Analysis: analysis}, nil
	}
}

func imageHandler(generator ImageGenerator) ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		prompt := entityString(intent, "description")
		if prompt == "" {
			prompt = msg.Content
		}
		asset, err := generator.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("image generation failed: %w", err)
		}
		return ImageData{Prompt: prompt, Asset: asset}, nil
	}
}

func audioHandler(generator AudioGenerator) ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		description := entityString(intent, "description")
		if description == "" {
			description = msg.Content
		}
		asset, err := generator.Compose(ctx, description)
		if err != nil {
			return nil, fmt.Errorf("audio generation failed: %w", err)
		}
		return AudioData{Description: description, Asset: asset}, nil
	}
}

func linkReviewHandler(analyzer LinkAnalyzer) ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		url := entityString(intent, "url")
		if url == "" {
			url = firstURL(msg.Content)
		}
		if url == "" {
			return nil, fmt.Errorf("no URL found in message")
		}
		review, err := analyzer.Analyze(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("link analysis failed: %w", err)
		}
		return LinkReviewData{Review: review}, nil
	}
}

func gameHandler() ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		game := "trivia"
		if strings.Contains(strings.ToLower(msg.Content), "quiz") {
			game = "quiz"
		}
		return GameData{
			Game:         game,
			Status:       "ready",
			Instructions: "Reply 'start' to begin, or name a topic to play on.",
		}, nil
	}
}

func streamHandler() ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		return StreamData{
			Channel: user.ID,
			Status:  "preparing",
		}, nil
	}
}

func generalHandler() ModuleHandler {
	return func(ctx context.Context, intent models.Intent, msg *models.UserMessage, user *models.User) (any, error) {
		return GeneralData{
			Message: "I can help with code questions, image and audio generation, link reviews, games, and streaming. What would you like to do?",
		}, nil
	}
}

func entityString(intent models.Intent, key string) string {
	if v, ok := intent.Entities[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var messageURLRegex = regexp.MustCompile(`https?://\S+`)

func firstURL(text string) string {
	return messageURLRegex.FindString(text)
}
