package models

// ExecutionMetadata is stamped onto every skill execution by the dispatcher
type ExecutionMetadata struct {
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	ModuleID         string  `json:"module_id"`
	Confidence       float64 `json:"confidence"`
}

// SkillExecutionResult is the dispatcher's output, consumed by the preview
// generator and the response composer
type SkillExecutionResult struct {
	SkillsUsed []string          `json:"skills_used"`
	Data       any               `json:"data"`
	Metadata   ExecutionMetadata `json:"metadata"`
}

// Preview kinds
const (
	PreviewKindImage      = "image"
	PreviewKindAudio      = "audio"
	PreviewKindCode       = "code"
	PreviewKindLinkReview = "link_review"
	PreviewKindText       = "text"
)

// Preview is a typed, renderable summary of a skill's output.
// SourceRef points at either inline content or a short-lived blob handle.
type Preview struct {
	Kind             string         `json:"kind"`
	SourceRef        string         `json:"source_ref"`
	AvailableActions []string       `json:"available_actions"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// ResponseMetadata describes a composed response
type ResponseMetadata struct {
	ResponseType string  `json:"response_type"`
	HasPreviews  bool    `json:"has_previews"`
	Confidence   float64 `json:"confidence"`
}

// ComposedResponse is the final user-facing message plus preview metadata
type ComposedResponse struct {
	Content  string           `json:"content"`
	Previews []Preview        `json:"previews"`
	Metadata ResponseMetadata `json:"metadata"`
}

// OrchestratorResponse is the outbound contract of the whole pipeline
type OrchestratorResponse struct {
	ID       string                       `json:"id"`
	Content  string                       `json:"content"`
	Previews []Preview                    `json:"previews"`
	Metadata OrchestratorResponseMetadata `json:"metadata"`
	Learning *LearningRecord              `json:"learning_data,omitempty"`
}

// OrchestratorResponseMetadata carries execution context back to the caller
type OrchestratorResponseMetadata struct {
	SkillsUsed       []string `json:"skills_used"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Permissions      []string `json:"permissions"`
	ResponseType     string   `json:"response_type"`
}
