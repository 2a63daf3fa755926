package handlers

import (
	"time"

	"acey/internal/models"
	"acey/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SkillHandler handles skill catalog HTTP requests
type SkillHandler struct {
	registry     *services.SkillRegistry
	classifier   *services.IntentClassifier
	entitlements *services.EntitlementService
}

// NewSkillHandler creates a skill handler
func NewSkillHandler(registry *services.SkillRegistry, classifier *services.IntentClassifier, entitlements *services.EntitlementService) *SkillHandler {
	return &SkillHandler{registry: registry, classifier: classifier, entitlements: entitlements}
}

// ListSkills returns all registered skill manifests
func (h *SkillHandler) ListSkills(c *fiber.Ctx) error {
	snapshot := h.registry.Snapshot()
	return c.JSON(fiber.Map{
		"skills":  snapshot.List(),
		"version": snapshot.Version,
		"total":   len(snapshot.List()),
	})
}

// GetSkill returns a single skill manifest by ID
func (h *SkillHandler) GetSkill(c *fiber.Ctx) error {
	id := c.Params("id")

	manifest := h.registry.Get(id)
	if manifest == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Skill not found",
		})
	}

	return c.JSON(manifest)
}

// RegisterSkill registers a new skill manifest
func (h *SkillHandler) RegisterSkill(c *fiber.Ctx) error {
	var manifest models.SkillManifest
	if err := c.BodyParser(&manifest); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.registry.Register(&manifest); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(manifest)
}

// TrialRequest is the body for granting a skill trial
type TrialRequest struct {
	UserID string `json:"user_id"`
	Days   int    `json:"days"`
}

// GrantTrial starts a time-limited trial of a skill for a user
func (h *SkillHandler) GrantTrial(c *fiber.Ctx) error {
	skillID := c.Params("id")
	if h.registry.Get(skillID) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Skill not found",
		})
	}

	var req TrialRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}
	if req.Days <= 0 {
		req.Days = 7
	}

	duration := time.Duration(req.Days) * 24 * time.Hour
	if err := h.entitlements.GrantTrial(c.Context(), req.UserID, skillID, duration); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	h.entitlements.InvalidateUser(c.Context(), req.UserID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"skill_id":   skillID,
		"user_id":    req.UserID,
		"expires_in": duration.String(),
	})
}

// RegisterIntentPattern registers a new intent pattern at runtime
func (h *SkillHandler) RegisterIntentPattern(c *fiber.Ctx) error {
	var pattern services.IntentPattern
	if err := c.BodyParser(&pattern); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.classifier.RegisterPattern(pattern); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"patterns": len(h.classifier.Patterns()),
	})
}
