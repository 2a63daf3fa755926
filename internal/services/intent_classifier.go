package services

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"acey/internal/models"
)

// IntentPattern declares how one intent type is recognized.
// Keywords are matched case-insensitively as substrings; regexes may carry
// named capture groups which become entities.
type IntentPattern struct {
	Type     string   `json:"type" yaml:"type"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Regexes  []string `json:"regexes" yaml:"regexes"`
	Priority int      `json:"priority" yaml:"priority"`
}

type compiledPattern struct {
	pattern  IntentPattern
	keywords []string // pre-lowercased
	regexes  []*regexp.Regexp
}

// IntentClassifier scores free text against registered patterns and returns
// the best-match intent. Patterns are evaluated in registration order; on a
// score tie the first registered pattern wins, so registration order matters.
type IntentClassifier struct {
	mu       sync.RWMutex
	patterns []*compiledPattern
}

// NewIntentClassifier creates a classifier pre-loaded with the built-in patterns
func NewIntentClassifier() *IntentClassifier {
	c := &IntentClassifier{}
	for _, p := range builtinIntentPatterns() {
		if err := c.RegisterPattern(p); err != nil {
			log.Printf("⚠️ [INTENT] Failed to register built-in pattern %s: %v", p.Type, err)
		}
	}
	return c
}

// RegisterPattern adds a pattern at the end of the evaluation order.
// Subsequent classifications see the new pattern; in-flight ones do not.
func (c *IntentClassifier) RegisterPattern(p IntentPattern) error {
	if p.Type == "" {
		return fmt.Errorf("intent pattern missing type")
	}

	cp := &compiledPattern{pattern: p}
	for _, kw := range p.Keywords {
		cp.keywords = append(cp.keywords, strings.ToLower(kw))
	}
	for _, expr := range p.Regexes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("intent pattern %s: bad regex %q: %w", p.Type, expr, err)
		}
		cp.regexes = append(cp.regexes, re)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Copy-on-write so readers holding the old slice are never surprised mid-request
	next := make([]*compiledPattern, len(c.patterns), len(c.patterns)+1)
	copy(next, c.patterns)
	c.patterns = append(next, cp)
	return nil
}

// Patterns returns the registered pattern declarations in evaluation order
func (c *IntentClassifier) Patterns() []IntentPattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]IntentPattern, 0, len(c.patterns))
	for _, cp := range c.patterns {
		out = append(out, cp.pattern)
	}
	return out
}

// Classify scores text against every registered pattern and returns the
// best-match intent. Unmatched text degrades to the general intent with
// confidence 0. That is a fallback, not an error.
func (c *IntentClassifier) Classify(text string) models.Intent {
	c.mu.RLock()
	patterns := c.patterns
	c.mu.RUnlock()

	lower := strings.ToLower(text)

	var best *compiledPattern
	bestScore := 0.0
	bestEntities := map[string]any{}

	for _, cp := range patterns {
		score, entities := cp.score(text, lower)
		// Strictly greater: on a tie the first registered pattern wins
		if score > bestScore {
			best = cp
			bestScore = score
			bestEntities = entities
		}
	}

	metadata := map[string]any{
		"inputLength": len(text),
		"hasUrl":      urlRegex.MatchString(text),
		"timestamp":   time.Now(),
	}

	if best == nil || bestScore <= 0 {
		return models.Intent{
			Type:       models.IntentGeneral,
			Confidence: 0,
			Entities:   map[string]any{},
			Metadata:   metadata,
		}
	}

	return models.Intent{
		Type:       best.pattern.Type,
		Confidence: models.Clamp01(bestScore),
		Entities:   bestEntities,
		Metadata:   metadata,
	}
}

// score computes the pattern's combined score and any extracted entities
func (cp *compiledPattern) score(text, lower string) (float64, map[string]any) {
	entities := map[string]any{}

	keywordScore := 0.0
	if len(cp.keywords) > 0 {
		matched := 0
		for _, kw := range cp.keywords {
			if strings.Contains(lower, kw) {
				matched++
			}
		}
		keywordScore = float64(matched) / float64(len(cp.keywords)) * 0.6
	}

	regexScore := 0.0
	for _, re := range cp.regexes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		regexScore += 0.4
		for i, name := range re.SubexpNames() {
			if name != "" && i < len(m) && m[i] != "" {
				entities[name] = strings.TrimSpace(m[i])
			}
		}
	}

	combined := (keywordScore + regexScore) * (1 + float64(cp.pattern.Priority)*0.1)
	return combined, entities
}

var urlRegex = regexp.MustCompile(`https?://\S+`)

// builtinIntentPatterns returns the default pattern table.
// Order is the evaluation order and is part of the routing contract.
func builtinIntentPatterns() []IntentPattern {
	return []IntentPattern{
		{
			Type:     models.IntentCodeHelp,
			Keywords: []string{"code", "debug", "function", "error", "bug", "fix"},
			Regexes: []string{
				`(?i)(help|fix|debug|explain).{0,40}(code|function|script|error)`,
			},
			Priority: 2,
		},
		{
			Type:     models.IntentGenerateImage,
			Keywords: []string{"image", "picture", "draw", "photo", "art"},
			Regexes: []string{
				`(?i)(?:image|picture|photo|drawing|art)\s+of\s+(?P<description>.+?)[.!?]?$`,
			},
			Priority: 3,
		},
		{
			Type:     models.IntentGenerateAudio,
			Keywords: []string{"audio", "music", "song", "sound", "voice"},
			Regexes: []string{
				`(?i)(?:audio|music|song|sound|track)\s+(?:of|about|for)\s+(?P<description>.+?)[.!?]?$`,
			},
			Priority: 3,
		},
		{
			Type:     models.IntentReviewLink,
			Keywords: []string{"review", "check", "look at", "analyze"},
			Regexes: []string{
				`(?P<url>https?://\S+)`,
			},
			Priority: 4,
		},
		{
			Type:     models.IntentPlayGame,
			Keywords: []string{"game", "play", "trivia", "quiz"},
			Regexes: []string{
				`(?i)(play|start).{0,20}(game|trivia|quiz)`,
			},
			Priority: 1,
		},
		{
			Type:     models.IntentStartStream,
			Keywords: []string{"stream", "broadcast", "live", "go live"},
			Regexes: []string{
				`(?i)(start|begin|go).{0,20}(stream|broadcast|live)`,
			},
			Priority: 1,
		},
	}
}
