package models

import "fmt"

// SkillManifest describes a pluggable capability module and how it is gated.
// Manifests live in the skill registry for the process lifetime; registered once,
// never removed at runtime.
type SkillManifest struct {
	ID            string   `json:"id" yaml:"id"`
	DisplayName   string   `json:"display_name" yaml:"display_name"`
	MinimumTier   string   `json:"minimum_tier" yaml:"minimum_tier"`
	ServedIntents []string `json:"served_intents" yaml:"served_intents"`
	ModuleID      string   `json:"module_id" yaml:"module_id"`
	Permissions   []string `json:"permissions" yaml:"permissions"`
}

// Validate checks the manifest before registration
func (m *SkillManifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("skill manifest missing id")
	}
	if m.DisplayName == "" {
		return fmt.Errorf("skill %s: missing display_name", m.ID)
	}
	if m.ModuleID == "" {
		return fmt.Errorf("skill %s: missing module_id", m.ID)
	}
	if !IsValidTier(m.MinimumTier) {
		return fmt.Errorf("skill %s: unknown minimum_tier %q", m.ID, m.MinimumTier)
	}
	return nil
}

// ServesIntent reports whether the manifest lists the given intent type
func (m *SkillManifest) ServesIntent(intentType string) bool {
	for _, it := range m.ServedIntents {
		if it == intentType {
			return true
		}
	}
	return false
}

// Module IDs for the built-in skill modules
const (
	ModuleCodeAssistant = "code_assistant"
	ModuleImageCreator  = "image_creator"
	ModuleAudioComposer = "audio_composer"
	ModuleLinkReviewer  = "link_reviewer"
	ModuleGameEngine    = "game_engine"
	ModuleStreamManager = "stream_manager"
	ModuleGeneralChat   = "general_chat"
)

// PermissionDecision is the per-skill outcome of an authorization check.
// A decision with Allowed=false always carries a Reason.
type PermissionDecision struct {
	SkillID      string `json:"skill_id"`
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	RequiredTier string `json:"required_tier,omitempty"`
}
