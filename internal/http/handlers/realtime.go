package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/threadchat-backend/internal/http/response"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/realtime"
	"github.com/yungbote/threadchat-backend/internal/services"
)

type RealtimeHandler struct {
	log     *logger.Logger
	hub     *realtime.SSEHub
	threads services.ThreadService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, threads services.ThreadService) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, threads: threads}
}

// GET /api/threads/:id/events
func (h *RealtimeHandler) ThreadEvents(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.threads.Get(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, id.String())
	h.log.Info("SSE subscription open", "thread_id", id, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Info("SSE subscription closed", "thread_id", id, "client_id", client.ID)
}
