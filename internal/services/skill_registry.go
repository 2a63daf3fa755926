package services

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"acey/internal/models"

	"gopkg.in/yaml.v3"
)

// RegistrySnapshot is an immutable view of the skill catalog.
// Readers resolve skills against one snapshot for the whole request, so a
// concurrent registration never changes routing mid-pipeline.
type RegistrySnapshot struct {
	Version   uint64
	byID      map[string]*models.SkillManifest
	byIntent  map[string]*models.SkillManifest
	manifests []*models.SkillManifest
}

// Get returns the manifest with the given ID, or nil
func (s *RegistrySnapshot) Get(id string) *models.SkillManifest {
	return s.byID[id]
}

// ForIntent returns the manifest serving the given intent type, or nil.
// When several manifests claim an intent the earliest registered wins.
func (s *RegistrySnapshot) ForIntent(intentType string) *models.SkillManifest {
	return s.byIntent[intentType]
}

// List returns all manifests in registration order
func (s *RegistrySnapshot) List() []*models.SkillManifest {
	return s.manifests
}

// SkillRegistry is the mutable catalog of skill manifests. Every registration
// produces a new immutable snapshot swapped in atomically.
type SkillRegistry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[RegistrySnapshot]
}

// NewSkillRegistry creates a registry pre-seeded with the built-in manifests
func NewSkillRegistry() *SkillRegistry {
	r := &SkillRegistry{}
	r.snapshot.Store(&RegistrySnapshot{
		byID:     map[string]*models.SkillManifest{},
		byIntent: map[string]*models.SkillManifest{},
	})
	for _, m := range builtinSkillManifests() {
		if err := r.Register(m); err != nil {
			log.Printf("⚠️ [REGISTRY] Failed to register built-in skill %s: %v", m.ID, err)
		}
	}
	return r
}

// Register validates and adds a manifest, publishing a new snapshot.
// Re-registering an existing ID replaces its manifest in place.
func (r *SkillRegistry) Register(manifest *models.SkillManifest) error {
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("invalid skill manifest: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.snapshot.Load()

	next := &RegistrySnapshot{
		Version:  prev.Version + 1,
		byID:     make(map[string]*models.SkillManifest, len(prev.byID)+1),
		byIntent: make(map[string]*models.SkillManifest, len(prev.byIntent)+1),
	}

	replaced := false
	for _, m := range prev.manifests {
		if m.ID == manifest.ID {
			next.manifests = append(next.manifests, manifest)
			replaced = true
		} else {
			next.manifests = append(next.manifests, m)
		}
	}
	if !replaced {
		next.manifests = append(next.manifests, manifest)
	}

	for _, m := range next.manifests {
		next.byID[m.ID] = m
		for _, intent := range m.ServedIntents {
			// First registration wins an intent; later skills don't steal routes
			if _, taken := next.byIntent[intent]; !taken {
				next.byIntent[intent] = m
			}
		}
	}

	r.snapshot.Store(next)
	return nil
}

// Snapshot returns the current immutable catalog view
func (r *SkillRegistry) Snapshot() *RegistrySnapshot {
	return r.snapshot.Load()
}

// Get returns the manifest with the given ID from the current snapshot
func (r *SkillRegistry) Get(id string) *models.SkillManifest {
	return r.Snapshot().Get(id)
}

// List returns all manifests from the current snapshot
func (r *SkillRegistry) List() []*models.SkillManifest {
	return r.Snapshot().List()
}

// LoadManifestFile registers every manifest from a YAML file.
// Used at startup and again on hot reload, so replacement semantics apply.
func (r *SkillRegistry) LoadManifestFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read skills file: %w", err)
	}

	var doc struct {
		Skills []*models.SkillManifest `yaml:"skills"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse skills file: %w", err)
	}

	loaded := 0
	for _, m := range doc.Skills {
		if err := r.Register(m); err != nil {
			log.Printf("⚠️ [REGISTRY] Skipping manifest from %s: %v", path, err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// builtinSkillManifests returns the manifests registered at process start
func builtinSkillManifests() []*models.SkillManifest {
	return []*models.SkillManifest{
		{
			ID:            "general_chat",
			DisplayName:   "General Chat",
			MinimumTier:   models.TierFree,
			ServedIntents: []string{models.IntentGeneral},
			ModuleID:      models.ModuleGeneralChat,
			Permissions:   []string{"chat:respond"},
		},
		{
			ID:            "code_assistant",
			DisplayName:   "Code Assistant",
			MinimumTier:   models.TierFree,
			ServedIntents: []string{models.IntentCodeHelp},
			ModuleID:      models.ModuleCodeAssistant,
			Permissions:   []string{"chat:respond", "code:analyze"},
		},
		{
			ID:            "image_creator",
			DisplayName:   "Image Creator",
			MinimumTier:   models.TierPro,
			ServedIntents: []string{models.IntentGenerateImage},
			ModuleID:      models.ModuleImageCreator,
			Permissions:   []string{"chat:respond", "media:generate_image"},
		},
		{
			ID:            "audio_composer",
			DisplayName:   "Audio Composer",
			MinimumTier:   models.TierPro,
			ServedIntents: []string{models.IntentGenerateAudio},
			ModuleID:      models.ModuleAudioComposer,
			Permissions:   []string{"chat:respond", "media:generate_audio"},
		},
		{
			ID:            "link_reviewer",
			DisplayName:   "Link Reviewer",
			MinimumTier:   models.TierCreator,
			ServedIntents: []string{models.IntentReviewLink},
			ModuleID:      models.ModuleLinkReviewer,
			Permissions:   []string{"chat:respond", "web:analyze"},
		},
		{
			ID:            "game_host",
			DisplayName:   "Game Host",
			MinimumTier:   models.TierFree,
			ServedIntents: []string{models.IntentPlayGame},
			ModuleID:      models.ModuleGameEngine,
			Permissions:   []string{"chat:respond", "games:host"},
		},
		{
			ID:            "stream_manager",
			DisplayName:   "Stream Manager",
			MinimumTier:   models.TierCreator,
			ServedIntents: []string{models.IntentStartStream},
			ModuleID:      models.ModuleStreamManager,
			Permissions:   []string{"chat:respond", "stream:manage"},
		},
	}
}
