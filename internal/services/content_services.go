package services

import "context"

// The pipeline treats content generation as an external capability: each
// skill module delegates to one of these narrow interfaces. Implementations
// may call remote services; the defaults in content_defaults.go run locally.

// CodeAssistant answers code questions
type CodeAssistant interface {
	Analyze(ctx context.Context, question string) (CodeAnalysis, error)
}

// CodeAnalysis is a code module's answer
type CodeAnalysis struct {
	Analysis string `json:"analysis"`
	Language string `json:"language,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// ImageGenerator produces image content from a prompt
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (MediaAsset, error)
}

// AudioGenerator produces audio content from a description
type AudioGenerator interface {
	Compose(ctx context.Context, description string) (MediaAsset, error)
}

// MediaAsset is generated binary content plus its MIME type
type MediaAsset struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// LinkAnalyzer reviews a URL and produces a structured assessment
type LinkAnalyzer interface {
	Analyze(ctx context.Context, url string) (LinkAnalysis, error)
}

// LinkAnalysis is the structured outcome of a link review
type LinkAnalysis struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Highlights  []string `json:"highlights"`
	Suggestions []string `json:"suggestions"`
	Rating      float64  `json:"rating"` // 0..1 quality estimate
}
