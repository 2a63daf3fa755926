package models

import "time"

// Intent types served by the built-in modules
const (
	IntentGeneral       = "general"
	IntentCodeHelp      = "code_help"
	IntentGenerateImage = "generate_image"
	IntentGenerateAudio = "generate_audio"
	IntentReviewLink    = "review_link"
	IntentPlayGame      = "play_game"
	IntentStartStream   = "start_stream"
)

// Intent is the classifier's verdict for one message. Confidence is in [0,1];
// zero means nothing matched and the general module handles the message.
type Intent struct {
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// UserMessage is one inbound chat message entering the pipeline
type UserMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// User carries the identity and entitlement facts the pipeline needs.
// InstalledSkillIDs is the inline set from the auth layer; the entitlement
// provider may know about more.
type User struct {
	ID                string   `json:"id"`
	TierID            string   `json:"tier_id"`
	InstalledSkillIDs []string `json:"installed_skill_ids,omitempty"`
}

// HasInstalled reports whether the inline set lists the skill
func (u *User) HasInstalled(skillID string) bool {
	for _, id := range u.InstalledSkillIDs {
		if id == skillID {
			return true
		}
	}
	return false
}
