package services

import (
	"fmt"
	"sync"

	"acey/internal/blobstore"
	"acey/internal/models"
)

// PreviewFactory converts one module's output into its preview (or none)
type PreviewFactory func(result *models.SkillExecutionResult) []models.Preview

// PreviewGenerator converts skill output into typed, renderable preview
// records. Binary content goes into the blob store behind a handle the
// caller must release once done with it.
type PreviewGenerator struct {
	blobs     *blobstore.Store
	mu        sync.RWMutex
	factories map[string]PreviewFactory // module ID -> factory
}

// NewPreviewGenerator creates a generator with the built-in preview factories
func NewPreviewGenerator(blobs *blobstore.Store) *PreviewGenerator {
	g := &PreviewGenerator{
		blobs:     blobs,
		factories: make(map[string]PreviewFactory),
	}

	g.RegisterFactory(models.ModuleImageCreator, g.imagePreview)
	g.RegisterFactory(models.ModuleAudioComposer, g.audioPreview)
	g.RegisterFactory(models.ModuleCodeAssistant, g.codePreview)
	g.RegisterFactory(models.ModuleLinkReviewer, g.linkReviewPreview)
	g.RegisterFactory(models.ModuleGameEngine, g.gamePreview)
	g.RegisterFactory(models.ModuleStreamManager, g.streamPreview)
	// General module intentionally has no factory: it produces zero previews

	return g
}

// RegisterFactory binds a module ID to its preview factory
func (g *PreviewGenerator) RegisterFactory(moduleID string, factory PreviewFactory) {
	g.mu.Lock()
	g.factories[moduleID] = factory
	g.mu.Unlock()
}

// Generate produces the previews for a skill execution result. Modules
// without a factory yield no previews.
func (g *PreviewGenerator) Generate(result *models.SkillExecutionResult) []models.Preview {
	g.mu.RLock()
	factory, ok := g.factories[result.Metadata.ModuleID]
	g.mu.RUnlock()

	if !ok {
		return nil
	}
	return factory(result)
}

func (g *PreviewGenerator) imagePreview(result *models.SkillExecutionResult) []models.Preview {
	data, ok := result.Data.(ImageData)
	if !ok {
		return nil
	}

	handle := g.blobs.Put(data.Asset.ContentType, data.Asset.Data)
	return []models.Preview{{
		Kind:             models.PreviewKindImage,
		SourceRef:        handle,
		AvailableActions: []string{"download", "regenerate", "edit"},
		Metadata: map[string]any{
			"prompt":       data.Prompt,
			"content_type": data.Asset.ContentType,
			"size_bytes":   len(data.Asset.Data),
		},
	}}
}

func (g *PreviewGenerator) audioPreview(result *models.SkillExecutionResult) []models.Preview {
	data, ok := result.Data.(AudioData)
	if !ok {
		return nil
	}

	handle := g.blobs.Put(data.Asset.ContentType, data.Asset.Data)
	return []models.Preview{{
		Kind:             models.PreviewKindAudio,
		SourceRef:        handle,
		AvailableActions: []string{"play", "download", "regenerate"},
		Metadata: map[string]any{
			"description":  data.Description,
			"content_type": data.Asset.ContentType,
			"size_bytes":   len(data.Asset.Data),
		},
	}}
}

func (g *PreviewGenerator) codePreview(result *models.SkillExecutionResult) []models.Preview {
	data, ok := result.Data.(CodeHelpData)
	if !ok || data.Analysis.Snippet == "" {
		return nil
	}

	return []models.Preview{{
		Kind:             models.PreviewKindCode,
		SourceRef:        data.Analysis.Snippet,
		AvailableActions: []string{"copy", "explain", "run"},
		Metadata: map[string]any{
			"language": data.Analysis.Language,
		},
	}}
}

func (g *PreviewGenerator) linkReviewPreview(result *models.SkillExecutionResult) []models.Preview {
	data, ok := result.Data.(LinkReviewData)
	if !ok {
		return nil
	}

	return []models.Preview{{
		Kind:             models.PreviewKindLinkReview,
		SourceRef:        data.Review.URL,
		AvailableActions: []string{"approve", "download", "share"},
		Metadata: map[string]any{
			"title":  data.Review.Title,
			"rating": data.Review.Rating,
		},
	}}
}

func (g *PreviewGenerator) gamePreview(result *models.SkillExecutionResult) []models.Preview {
	data, ok := result.Data.(GameData)
	if !ok {
		return nil
	}

	return []models.Preview{{
		Kind:             models.PreviewKindText,
		SourceRef:        fmt.Sprintf("Game: %s (%s)", data.Game, data.Status),
		AvailableActions: []string{"start", "change_topic", "quit"},
	}}
}

func (g *PreviewGenerator) streamPreview(result *models.SkillExecutionResult) []models.Preview {
	data, ok := result.Data.(StreamData)
	if !ok {
		return nil
	}

	return []models.Preview{{
		Kind:             models.PreviewKindText,
		SourceRef:        fmt.Sprintf("Stream on %s: %s", data.Channel, data.Status),
		AvailableActions: []string{"go_live", "configure", "cancel"},
	}}
}
