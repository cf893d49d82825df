// Package agents serves the agent persona chat endpoints. The persona set is
// a fixed table; there is no persona management surface.
package agents

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/llm"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/services"
)

// Handlers serves the /api/v1/agents route group.
type Handlers struct {
	svc *services.AgentService
}

// NewHandlers creates the agent handlers.
func NewHandlers(svc *services.AgentService) *Handlers {
	return &Handlers{svc: svc}
}

// ChatRequest is one user message to a persona.
type ChatRequest struct {
	Message string `json:"message"`
}

// @Summary      List agent personas
// @Description  Returns the fixed set of agent personas available for chat.
// @Tags         Agents
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "agents: persona list"
// @Router       /api/v1/agents [get]
// List returns the persona table
// GET /api/v1/agents
func (h *Handlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": llm.Personas()})
}

// @Summary      Chat with an agent persona
// @Description  Sends one message to the named persona. The reply is grounded in the caller's own recent transactions; personas differ only in voice.
// @Tags         Agents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        persona  path  string       true  "Persona id (ipon, gastos, isla)"
// @Param        body     body  ChatRequest  true  "Chat message"
// @Success      200  {object}  services.ChatReply
// @Failure      400  {object}  map[string]interface{}  "Malformed request body"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Unknown persona"
// @Failure      422  {object}  map[string]interface{}  "Empty message"
// @Failure      502  {object}  map[string]interface{}  "Model upstream unavailable"
// @Failure      503  {object}  map[string]interface{}  "Storage unavailable"
// @Router       /api/v1/agents/{persona}/chat [post]
// Chat relays one message to a persona
// POST /api/v1/agents/:persona/chat
func (h *Handlers) Chat(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDVal.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	reply, err := h.svc.Chat(c.Request.Context(), userID, c.Param("persona"), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownPersona):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown agent persona"})
		case errors.Is(err, services.ErrEmptyMessage):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Message must not be empty"})
		case errors.Is(err, linking.ErrUpstreamUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "The agent is unavailable right now, please try again shortly"})
		case errors.Is(err, linking.ErrStorageUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not load your transactions right now"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to chat with agent"})
		}
		return
	}

	c.JSON(http.StatusOK, reply)
}
