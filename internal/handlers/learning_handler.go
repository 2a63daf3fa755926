package handlers

import (
	"strconv"

	"acey/internal/services"

	"github.com/gofiber/fiber/v2"
)

// LearningHandler exposes the learning feedback loop over HTTP
type LearningHandler struct {
	learning *services.LearningService
}

// NewLearningHandler creates a learning handler
func NewLearningHandler(learning *services.LearningService) *LearningHandler {
	return &LearningHandler{learning: learning}
}

// Stats returns dataset summary statistics
func (h *LearningHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.learning.Stats())
}

// PatternMetrics returns all pattern metrics
func (h *LearningHandler) PatternMetrics(c *fiber.Ctx) error {
	return c.JSON(h.learning.PatternMetrics())
}

// EffectivePatterns returns patterns above a success-rate floor
func (h *LearningHandler) EffectivePatterns(c *fiber.Ctx) error {
	min := 0.7
	if raw := c.Query("min"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "min must be a number in [0,1]",
			})
		}
		min = parsed
	}

	return c.JSON(h.learning.EffectivePatterns(min))
}

// Search returns records matching a query
func (h *LearningHandler) Search(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q is required",
		})
	}

	records := h.learning.Search(query)
	return c.JSON(fiber.Map{
		"records": records,
		"total":   len(records),
	})
}

// FeedbackRequest is the body for attaching feedback to a record
type FeedbackRequest struct {
	Feedback string `json:"feedback"` // "approve" or "needs_improvement"
}

// AttachFeedback records user feedback for a learning record
func (h *LearningHandler) AttachFeedback(c *fiber.Ctx) error {
	id := c.Params("id")

	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	record, err := h.learning.AttachFeedback(id, req.Feedback)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(record)
}

// Export returns the entire dataset
func (h *LearningHandler) Export(c *fiber.Ctx) error {
	return c.JSON(h.learning.ExportAll())
}

// Clear wipes the dataset
func (h *LearningHandler) Clear(c *fiber.Ctx) error {
	h.learning.Clear()
	return c.JSON(fiber.Map{"cleared": true})
}
