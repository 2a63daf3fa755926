package handlers

import (
	"errors"
	"time"

	"acey/internal/models"
	"acey/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MessageHandler runs the orchestration pipeline for inbound messages
type MessageHandler struct {
	orchestrator *services.OrchestratorService
	composer     *services.ResponseComposer
}

// NewMessageHandler creates a message handler
func NewMessageHandler(orchestrator *services.OrchestratorService, composer *services.ResponseComposer) *MessageHandler {
	return &MessageHandler{orchestrator: orchestrator, composer: composer}
}

// MessageRequest is the POST /api/message body. The user record comes from
// the surrounding auth/session layer; here it arrives inline.
type MessageRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	User    struct {
		ID                string   `json:"id"`
		TierID            string   `json:"tier_id"`
		InstalledSkillIDs []string `json:"installed_skill_ids"`
	} `json:"user"`
	RenderHTML bool `json:"render_html"`
}

// ProcessMessage handles POST /api/message
func (h *MessageHandler) ProcessMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Content == "" || req.User.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content and user.id are required",
		})
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	tier := req.User.TierID
	if tier == "" {
		tier = models.TierFree
	}

	msg := &models.UserMessage{
		ID:        req.ID,
		Content:   req.Content,
		UserID:    req.User.ID,
		Timestamp: time.Now(),
	}
	user := &models.User{
		ID:                req.User.ID,
		TierID:            tier,
		InstalledSkillIDs: req.User.InstalledSkillIDs,
	}

	resp, err := h.orchestrator.ProcessMessage(c.Context(), msg, user)
	if err != nil {
		var cfgErr *services.ConfigurationError
		if errors.As(err, &cfgErr) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Skill configuration error: " + cfgErr.Error(),
			})
		}
		// Dispatch failure: the caller owns retry policy
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Skill execution failed",
		})
	}

	if req.RenderHTML {
		if html, err := h.composer.RenderHTML(resp.Content); err == nil {
			return c.JSON(fiber.Map{"response": resp, "html": html})
		}
	}

	return c.JSON(resp)
}
