package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/threadchat-backend/internal/http/response"
	"github.com/yungbote/threadchat-backend/internal/services"
)

type ThreadHandler struct {
	threads services.ThreadService
}

func NewThreadHandler(threads services.ThreadService) *ThreadHandler {
	return &ThreadHandler{threads: threads}
}

// GET /api/threads?limit=100
func (h *ThreadHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	threads, err := h.threads.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, threads)
}

// GET /api/threads/:id
func (h *ThreadHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	sum, err := h.threads.Summary(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"thread":        sum.Thread,
		"message_count": sum.MessageCount,
		"last_idx":      sum.LastIdx,
	})
}

// GET /api/threads/:id/messages
func (h *ThreadHandler) Messages(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	th, msgs, err := h.threads.Export(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": th, "messages": msgs})
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter. A malformed value is
// answered with 400.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return 0, false
	}
	return n, true
}
