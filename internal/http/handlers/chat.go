package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/threadchat-backend/internal/http/response"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/ctxutil"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/services"
)

const HeaderThreadID = "X-Thread-Id"

type ChatHandler struct {
	log          *logger.Logger
	chat         services.ChatService
	threads      services.ThreadService
	history      services.HistoryLoader
	historyLimit int
}

func NewChatHandler(
	log *logger.Logger,
	chat services.ChatService,
	threads services.ThreadService,
	history services.HistoryLoader,
	historyLimit int,
) *ChatHandler {
	return &ChatHandler{
		log:          log.With("handler", "ChatHandler"),
		chat:         chat,
		threads:      threads,
		history:      history,
		historyLimit: historyLimit,
	}
}

type streamReq struct {
	Message     string     `json:"message"`
	ThreadTitle string     `json:"thread_title"`
	ThreadID    *uuid.UUID `json:"thread_id"`
}

// POST /api/chat/stream
func (h *ChatHandler) Stream(c *gin.Context) {
	var req streamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, err)
		return
	}

	ctx := c.Request.Context()
	turn, err := h.chat.Prepare(ctx, services.StreamRequest{
		Message:     req.Message,
		ThreadTitle: req.ThreadTitle,
		ThreadID:    req.ThreadID,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}

	sse, ok := response.NewSSEWriter(c.Writer)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, nil)
		return
	}
	sse.WriteHeaders(map[string]string{HeaderThreadID: turn.Thread.ID.String()})

	log := h.log.With("thread_id", turn.Thread.ID, "request_id", ctxutil.RequestID(ctx))
	res, err := h.chat.Stream(ctx, turn, sse.Data)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("Chat stream cancelled by client", "error", err)
		}
		_ = sse.Error(streamErrorMessage(err))
		return
	}
	log.Debug("Chat stream complete", "indices", res.Indices)
	_ = sse.Done()
}

// GET /api/chat/history?thread_title=&limit=
func (h *ChatHandler) History(c *gin.Context) {
	limit, ok := queryInt(c, "limit", h.historyLimit)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	th, err := h.threads.Resolve(ctx, strings.TrimSpace(c.Query("thread_title")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	msgs, err := h.history.LoadRecent(ctx, th.ID, limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": th, "messages": msgs})
}

func streamErrorMessage(err error) string {
	ae := apierr.From(err)
	if ae.Code == apierr.CodeInternal {
		return "internal server error"
	}
	return ae.Error()
}
