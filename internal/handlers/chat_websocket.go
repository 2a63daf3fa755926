package handlers

import (
	"context"
	"log"
	"time"

	"acey/internal/models"
	"acey/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// ChatWebSocketHandler streams pipeline stage events to connected clients
type ChatWebSocketHandler struct {
	orchestrator *services.OrchestratorService
	metrics      *services.Metrics
}

// NewChatWebSocketHandler creates a chat WebSocket handler
func NewChatWebSocketHandler(orchestrator *services.OrchestratorService, metrics *services.Metrics) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{orchestrator: orchestrator, metrics: metrics}
}

// wsInbound is one message from the client
type wsInbound struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	User    struct {
		ID                string   `json:"id"`
		TierID            string   `json:"tier_id"`
		InstalledSkillIDs []string `json:"installed_skill_ids"`
	} `json:"user"`
}

// wsOutbound is one event sent to the client
type wsOutbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Handle runs the WebSocket session loop. Each inbound message drives one
// pipeline run whose stage events stream back as they happen.
func (h *ChatWebSocketHandler) Handle(c *websocket.Conn) {
	if h.metrics != nil {
		h.metrics.WebSocketConnections.Inc()
		defer h.metrics.WebSocketConnections.Dec()
	}

	for {
		var inbound wsInbound
		if err := c.ReadJSON(&inbound); err != nil {
			// Client closed or sent garbage; either way the session is over
			return
		}

		if inbound.Content == "" || inbound.User.ID == "" {
			h.send(c, wsOutbound{Type: "error", Data: "content and user.id are required"})
			continue
		}

		if inbound.ID == "" {
			inbound.ID = uuid.NewString()
		}
		tier := inbound.User.TierID
		if tier == "" {
			tier = models.TierFree
		}

		msg := &models.UserMessage{
			ID:        inbound.ID,
			Content:   inbound.Content,
			UserID:    inbound.User.ID,
			Timestamp: time.Now(),
		}
		user := &models.User{
			ID:                inbound.User.ID,
			TierID:            tier,
			InstalledSkillIDs: inbound.User.InstalledSkillIDs,
		}

		// Pipeline runs survive slow websocket writes but not forever
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

		resp, err := h.orchestrator.ProcessMessageObserved(ctx, msg, user, func(stage string, data any) {
			h.send(c, wsOutbound{Type: stage, Data: data})
		})
		cancel()

		if err != nil {
			h.send(c, wsOutbound{Type: "error", Data: "Skill execution failed"})
			continue
		}

		h.send(c, wsOutbound{Type: "response", Data: resp})
	}
}

func (h *ChatWebSocketHandler) send(c *websocket.Conn, out wsOutbound) {
	if err := c.WriteJSON(out); err != nil {
		log.Printf("⚠️ [WS] Failed to write message: %v", err)
	}
}
