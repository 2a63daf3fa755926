package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"acey/internal/models"

	"github.com/yuin/goldmark"
)

// Response types carried in composed metadata
const (
	ResponseTypeCodeHelp   = "code_help"
	ResponseTypeImage      = "image"
	ResponseTypeAudio      = "audio"
	ResponseTypeLinkReview = "link_review"
	ResponseTypeGame       = "game"
	ResponseTypeStream     = "stream"
	ResponseTypeGeneral    = "general"
	ResponseTypeError      = "error"
	ResponseTypeLocked     = "locked"
)

const apologyMessage = "Sorry, I had trouble putting that response together. Please try again."

// ResponseComposer turns module output plus previews into the final
// markdown message. Composition never fails: any formatting error is
// downgraded to a neutral apology so the pipeline always ends in a
// user-visible response.
type ResponseComposer struct {
	markdown goldmark.Markdown
}

// NewResponseComposer creates a composer
func NewResponseComposer() *ResponseComposer {
	return &ResponseComposer{
		markdown: goldmark.New(),
	}
}

// Compose renders the response for a skill execution result
func (c *ResponseComposer) Compose(result *models.SkillExecutionResult, previews []models.Preview) (resp *models.ComposedResponse) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ [COMPOSER] Recovered from formatting panic: %v", r)
			resp = c.errorResponse(result)
		}
	}()

	content, responseType, err := c.render(result)
	if err != nil {
		log.Printf("⚠️ [COMPOSER] Formatting failed for module %s: %v", result.Metadata.ModuleID, err)
		return c.errorResponse(result)
	}

	return &models.ComposedResponse{
		Content:  content,
		Previews: previews,
		Metadata: models.ResponseMetadata{
			ResponseType: responseType,
			HasPreviews:  len(previews) > 0,
			Confidence:   result.Metadata.Confidence,
		},
	}
}

// LockedResponse renders the graceful denial message for a locked skill
func (c *ResponseComposer) LockedResponse(skillName, reason string) *models.ComposedResponse {
	return &models.ComposedResponse{
		Content:  fmt.Sprintf("🔒 %s is locked. %s", skillName, reason),
		Previews: []models.Preview{},
		Metadata: models.ResponseMetadata{
			ResponseType: ResponseTypeLocked,
			HasPreviews:  false,
			Confidence:   1,
		},
	}
}

// RenderHTML converts composed markdown content to HTML for clients that
// want pre-rendered output
func (c *ResponseComposer) RenderHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("markdown render failed: %w", err)
	}
	return buf.String(), nil
}

func (c *ResponseComposer) errorResponse(result *models.SkillExecutionResult) *models.ComposedResponse {
	confidence := 0.0
	if result != nil {
		confidence = result.Metadata.Confidence
	}
	return &models.ComposedResponse{
		Content:  apologyMessage,
		Previews: []models.Preview{},
		Metadata: models.ResponseMetadata{
			ResponseType: ResponseTypeError,
			HasPreviews:  false,
			Confidence:   confidence,
		},
	}
}

// render selects the markdown template for the module and formats its data
func (c *ResponseComposer) render(result *models.SkillExecutionResult) (string, string, error) {
	if result == nil {
		return "", "", fmt.Errorf("nil execution result")
	}

	switch result.Metadata.ModuleID {
	case models.ModuleCodeAssistant:
		data, ok := result.Data.(CodeHelpData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for code module", result.Data)
		}
		return renderCodeHelp(data), ResponseTypeCodeHelp, nil

	case models.ModuleImageCreator:
		data, ok := result.Data.(ImageData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for image module", result.Data)
		}
		return fmt.Sprintf("🎨 Here's your image for **%s**. Use the preview actions to download, regenerate, or edit it.", data.Prompt), ResponseTypeImage, nil

	case models.ModuleAudioComposer:
		data, ok := result.Data.(AudioData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for audio module", result.Data)
		}
		return fmt.Sprintf("🎵 Composed audio for **%s**. Hit play in the preview to listen.", data.Description), ResponseTypeAudio, nil

	case models.ModuleLinkReviewer:
		data, ok := result.Data.(LinkReviewData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for link review module", result.Data)
		}
		return renderLinkReview(data.Review), ResponseTypeLinkReview, nil

	case models.ModuleGameEngine:
		data, ok := result.Data.(GameData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for game module", result.Data)
		}
		return fmt.Sprintf("🎮 **%s** is %s.\n\n%s", data.Game, data.Status, data.Instructions), ResponseTypeGame, nil

	case models.ModuleStreamManager:
		data, ok := result.Data.(StreamData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for stream module", result.Data)
		}
		return fmt.Sprintf("📡 Stream on channel **%s** is %s.", data.Channel, data.Status), ResponseTypeStream, nil

	case models.ModuleGeneralChat:
		data, ok := result.Data.(GeneralData)
		if !ok {
			return "", "", fmt.Errorf("unexpected data type %T for general module", result.Data)
		}
		return data.Message, ResponseTypeGeneral, nil

	default:
		return "", "", fmt.Errorf("no template for module %s", result.Metadata.ModuleID)
	}
}

func renderCodeHelp(data CodeHelpData) string {
	var b strings.Builder
	b.WriteString("💻 ")
	b.WriteString(data.Analysis.Analysis)
	if data.Analysis.Snippet != "" {
		lang := data.Analysis.Language
		b.WriteString("\n\n```")
		b.WriteString(lang)
		b.WriteString("\n")
		b.WriteString(data.Analysis.Snippet)
		b.WriteString("\n```")
	}
	return b.String()
}

func renderLinkReview(review LinkAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Review of %s**\n\n%s\n", review.Title, review.Summary)

	if len(review.Highlights) > 0 {
		b.WriteString("\n**Highlights**\n")
		for i, h := range review.Highlights {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
	}
	if len(review.Suggestions) > 0 {
		b.WriteString("\n**Suggestions**\n")
		for i, s := range review.Suggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}

	fmt.Fprintf(&b, "\nOverall: %s", ratingEmoji(review.Rating))
	return b.String()
}

// ratingEmoji maps a [0,1] rating to a qualitative emoji
func ratingEmoji(rating float64) string {
	switch {
	case rating >= 0.8:
		return "🌟 Excellent"
	case rating >= 0.6:
		return "👍 Good"
	case rating >= 0.4:
		return "😐 Okay"
	default:
		return "👎 Needs work"
	}
}
