package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default local implementations of the content services. They keep the server
// fully functional without any remote generation backend; deployments swap in
// real providers through the Dispatcher constructor.

// LocalCodeAssistant produces a heuristic code answer without an LLM backend
type LocalCodeAssistant struct{}

// Analyze inspects the question for a language hint and code fences
func (a *LocalCodeAssistant) Analyze(ctx context.Context, question string) (CodeAnalysis, error) {
	language := detectLanguage(question)

	var snippet string
	if m := codeFenceRegex.FindStringSubmatch(question); m != nil {
		snippet = strings.TrimSpace(m[1])
	}

	analysis := "Here's what I found in your question."
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "bug"):
		analysis = "This looks like a debugging question. Check the error message and the lines it points at first; most of the time the actual fault is one frame above the reported one."
	case strings.Contains(lower, "explain"):
		analysis = "This looks like a request for an explanation. I've pulled out the code below and annotated the structure I can see."
	case snippet != "":
		analysis = "I found a code snippet in your message and analyzed its structure."
	}

	return CodeAnalysis{
		Analysis: analysis,
		Language: language,
		Snippet:  snippet,
	}, nil
}

var codeFenceRegex = regexp.MustCompile("(?s)```[a-zA-Z]*\\n(.*?)```")

func detectLanguage(text string) string {
	lower := strings.ToLower(text)
	for _, lang := range []string{"go", "golang", "python", "javascript", "typescript", "rust", "java", "sql"} {
		if strings.Contains(lower, lang) {
			if lang == "golang" {
				return "go"
			}
			return lang
		}
	}
	return ""
}

// LocalImageGenerator renders a placeholder SVG carrying the prompt text
type LocalImageGenerator struct{}

// Generate produces an SVG placeholder for the prompt
func (g *LocalImageGenerator) Generate(ctx context.Context, prompt string) (MediaAsset, error) {
	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512"><rect width="100%%" height="100%%" fill="#1e1b2e"/><text x="50%%" y="50%%" fill="#e0def4" font-family="sans-serif" font-size="20" text-anchor="middle">%s</text></svg>`,
		html.EscapeString(prompt),
	)
	return MediaAsset{ContentType: "image/svg+xml", Data: []byte(svg)}, nil
}

// LocalAudioGenerator produces a short silent WAV clip as a stand-in
type LocalAudioGenerator struct{}

// Compose writes a 1-second 8kHz mono PCM WAV of silence
func (g *LocalAudioGenerator) Compose(ctx context.Context, description string) (MediaAsset, error) {
	const (
		sampleRate = 8000
		seconds    = 1
	)
	dataLen := sampleRate * seconds // 8-bit mono

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))         // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))          // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))          // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)) // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(1))          // block align
	binary.Write(&buf, binary.LittleEndian, uint16(8))          // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(bytes.Repeat([]byte{0x80}, dataLen)) // 8-bit silence is 0x80

	return MediaAsset{ContentType: "audio/wav", Data: buf.Bytes()}, nil
}

// HTTPLinkAnalyzer fetches a page and produces a structured review.
// Outbound requests are rate limited so a burst of review requests can't
// hammer the target.
type HTTPLinkAnalyzer struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPLinkAnalyzer creates a link analyzer capped at rps requests per second
func NewHTTPLinkAnalyzer(rps float64, burst int) *HTTPLinkAnalyzer {
	return &HTTPLinkAnalyzer{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Analyze fetches the URL and builds a review from what it can see
func (a *HTTPLinkAnalyzer) Analyze(ctx context.Context, url string) (LinkAnalysis, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return LinkAnalysis{}, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return LinkAnalysis{}, fmt.Errorf("invalid review URL: %w", err)
	}
	req.Header.Set("User-Agent", "AceyLinkReviewer/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return LinkAnalysis{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return LinkAnalysis{}, fmt.Errorf("failed to read %s: %w", url, err)
	}

	title := extractTitle(string(body))
	if title == "" {
		title = url
	}

	review := LinkAnalysis{
		URL:     url,
		Title:   title,
		Summary: fmt.Sprintf("Fetched %s (%d, %d bytes).", url, resp.StatusCode, len(body)),
	}

	if resp.StatusCode == http.StatusOK {
		review.Highlights = append(review.Highlights, "Page is reachable and served content")
		review.Rating = 0.7
	} else {
		review.Suggestions = append(review.Suggestions, fmt.Sprintf("Page returned status %d, check the link", resp.StatusCode))
		review.Rating = 0.3
	}
	if title != url {
		review.Highlights = append(review.Highlights, "Has a descriptive title: "+title)
		review.Rating += 0.1
	}
	if review.Rating > 1 {
		review.Rating = 1
	}

	return review, nil
}

var titleRegex = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(body string) string {
	if m := titleRegex.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}
