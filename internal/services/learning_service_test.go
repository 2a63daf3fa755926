package services

import (
	"math"
	"testing"

	"acey/internal/models"
)

func resultFor(moduleID string, confidence float64) *models.SkillExecutionResult {
	return &models.SkillExecutionResult{
		SkillsUsed: []string{"image_creator"},
		Data:       nil,
		Metadata: models.ExecutionMetadata{
			ProcessingTimeMs: 12,
			ModuleID:         moduleID,
			Confidence:       confidence,
		},
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecord_PatternMetricIncrementalUpdate(t *testing.T) {
	learning := NewLearningService(nil)

	// First record: approve at confidence 0.8
	learning.Record(resultFor(models.ModuleImageCreator, 0.8), "made an image", nil, models.FeedbackApprove)

	metrics := learning.PatternMetrics()
	metric, ok := metrics["image_creator_image"]
	if !ok {
		t.Fatalf("Expected metric for image_creator_image, got %v", metrics)
	}
	if !almostEqual(metric.SuccessRate, 1.0) || !almostEqual(metric.AverageConfidence, 0.8) || metric.UsageCount != 1 {
		t.Fatalf("After first record: got %+v, want successRate=1.0 avgConf=0.8 usage=1", metric)
	}

	// Second record: needs improvement at confidence 0.4
	learning.Record(resultFor(models.ModuleImageCreator, 0.4), "made another image", nil, models.FeedbackNeedsImprovement)

	metric = learning.PatternMetrics()["image_creator_image"]
	if !almostEqual(metric.SuccessRate, 0.5) || !almostEqual(metric.AverageConfidence, 0.6) || metric.UsageCount != 2 {
		t.Fatalf("After second record: got %+v, want successRate=0.5 avgConf=0.6 usage=2", metric)
	}
}

func TestRecord_TrustScores(t *testing.T) {
	learning := NewLearningService(nil)

	tests := []struct {
		feedback string
		expected float64
	}{
		{models.FeedbackApprove, 1.0},
		{models.FeedbackNeedsImprovement, 0.3},
		{"", 0.5},
	}

	for _, tt := range tests {
		record := learning.Record(resultFor(models.ModuleImageCreator, 0.5), "summary", nil, tt.feedback)
		if record.TrustScore != tt.expected {
			t.Errorf("Feedback %q: trust %v, want %v", tt.feedback, record.TrustScore, tt.expected)
		}
	}
}

func TestRecord_UniqueIDs(t *testing.T) {
	learning := NewLearningService(nil)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		record := learning.Record(resultFor(models.ModuleGeneralChat, 0.5), "summary", nil, "")
		if seen[record.ID] {
			t.Fatalf("Duplicate record ID %s", record.ID)
		}
		seen[record.ID] = true
	}
}

func TestRecord_ContentTypeInference(t *testing.T) {
	learning := NewLearningService(nil)

	tests := []struct {
		moduleID string
		expected string
	}{
		{models.ModuleImageCreator, "image"},
		{models.ModuleAudioComposer, "audio"},
		{models.ModuleCodeAssistant, "code"},
		{models.ModuleLinkReviewer, "link_review"},
		{models.ModuleGeneralChat, "text"},
		{"some_new_module", "text"},
	}

	for _, tt := range tests {
		record := learning.Record(resultFor(tt.moduleID, 0.5), "summary", nil, "")
		if record.ContentType != tt.expected {
			t.Errorf("Module %s: content type %s, want %s", tt.moduleID, record.ContentType, tt.expected)
		}
	}
}

func TestAttachFeedback(t *testing.T) {
	learning := NewLearningService(nil)

	record := learning.Record(resultFor(models.ModuleImageCreator, 0.6), "summary", nil, "")
	if record.TrustScore != models.TrustNeutral {
		t.Fatalf("Expected neutral trust before feedback, got %v", record.TrustScore)
	}

	updated, err := learning.AttachFeedback(record.ID, models.FeedbackApprove)
	if err != nil {
		t.Fatalf("AttachFeedback failed: %v", err)
	}
	if updated.TrustScore != models.TrustApproved {
		t.Errorf("Expected trust 1.0 after approve, got %v", updated.TrustScore)
	}

	// Metric success rate reflects the late approval
	metric := learning.PatternMetrics()["image_creator_image"]
	if !almostEqual(metric.SuccessRate, 1.0) {
		t.Errorf("Expected success rate 1.0 after late approval, got %v", metric.SuccessRate)
	}

	if _, err := learning.AttachFeedback("missing", models.FeedbackApprove); err == nil {
		t.Error("Expected error for unknown record")
	}
	if _, err := learning.AttachFeedback(record.ID, "meh"); err == nil {
		t.Error("Expected error for unknown feedback value")
	}
}

func TestStats(t *testing.T) {
	learning := NewLearningService(nil)

	learning.Record(resultFor(models.ModuleImageCreator, 0.8), "a", nil, models.FeedbackApprove)
	learning.Record(resultFor(models.ModuleImageCreator, 0.4), "b", nil, models.FeedbackNeedsImprovement)
	learning.Record(resultFor(models.ModuleGeneralChat, 0.5), "c", nil, "")

	stats := learning.Stats()

	if stats.TotalRecords != 3 {
		t.Errorf("Expected 3 records, got %d", stats.TotalRecords)
	}
	if stats.ApprovedCount != 1 || stats.RejectedCount != 1 || stats.PendingCount != 1 {
		t.Errorf("Unexpected feedback counts: %+v", stats)
	}
	if stats.PatternCount != 2 {
		t.Errorf("Expected 2 patterns, got %d", stats.PatternCount)
	}
	want := (1.0 + 0.3 + 0.5) / 3
	if !almostEqual(stats.AverageTrust, want) {
		t.Errorf("Expected average trust %v, got %v", want, stats.AverageTrust)
	}
}

func TestEffectivePatterns(t *testing.T) {
	learning := NewLearningService(nil)

	learning.Record(resultFor(models.ModuleImageCreator, 0.8), "a", nil, models.FeedbackApprove)
	learning.Record(resultFor(models.ModuleGeneralChat, 0.5), "b", nil, models.FeedbackNeedsImprovement)

	effective := learning.EffectivePatterns(0.7)

	if len(effective) != 1 {
		t.Fatalf("Expected 1 effective pattern, got %d", len(effective))
	}
	if _, ok := effective["image_creator_image"]; !ok {
		t.Errorf("Expected image_creator_image to be effective, got %v", effective)
	}
}

func TestSearch(t *testing.T) {
	learning := NewLearningService(nil)

	learning.Record(resultFor(models.ModuleImageCreator, 0.8), "generate_image: a dragon", nil, "")
	learning.Record(resultFor(models.ModuleGeneralChat, 0.5), "general: hello", nil, "")

	if got := len(learning.Search("dragon")); got != 1 {
		t.Errorf("Expected 1 match for 'dragon', got %d", got)
	}
	if got := len(learning.Search("HELLO")); got != 1 {
		t.Errorf("Expected case-insensitive summary match, got %d", got)
	}
	// Both records share the skill ID, which also matches
	if got := len(learning.Search("image_creator")); got != 2 {
		t.Errorf("Expected skill ID match on both records, got %d", got)
	}
	if got := len(learning.Search("nothing-matches")); got != 0 {
		t.Errorf("Expected 0 matches, got %d", got)
	}
}

func TestExportAllAndClear(t *testing.T) {
	learning := NewLearningService(nil)

	learning.Record(resultFor(models.ModuleImageCreator, 0.8), "a", nil, models.FeedbackApprove)
	learning.Record(resultFor(models.ModuleGeneralChat, 0.5), "b", nil, "")

	export := learning.ExportAll()
	if len(export.Records) != 2 {
		t.Errorf("Expected 2 exported records, got %d", len(export.Records))
	}
	if len(export.Metrics) != 2 {
		t.Errorf("Expected 2 exported metrics, got %d", len(export.Metrics))
	}
	if export.ExportedAt.IsZero() {
		t.Error("Expected export timestamp")
	}

	learning.Clear()

	stats := learning.Stats()
	if stats.TotalRecords != 0 || stats.PatternCount != 0 {
		t.Errorf("Expected empty dataset after clear, got %+v", stats)
	}
}

func TestPatternMetrics_UsageCountOnlyIncreases(t *testing.T) {
	learning := NewLearningService(nil)

	var last uint64
	for i := 0; i < 10; i++ {
		learning.Record(resultFor(models.ModuleImageCreator, 0.5), "s", nil, "")
		metric := learning.PatternMetrics()["image_creator_image"]
		if metric.UsageCount <= last {
			t.Fatalf("Usage count did not increase: %d -> %d", last, metric.UsageCount)
		}
		last = metric.UsageCount
	}
}
