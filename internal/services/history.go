package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/threadchat-backend/internal/data/repos"
	"github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

type HistoryLoader interface {
	// LoadRecent returns up to limit of the newest messages, oldest first.
	LoadRecent(ctx context.Context, threadID uuid.UUID, limit int) ([]*chat.Message, error)
}

type historyLoader struct {
	log      *logger.Logger
	messages repos.MessageRepo
}

func NewHistoryLoader(baseLog *logger.Logger, messageRepo repos.MessageRepo) HistoryLoader {
	return &historyLoader{log: baseLog.With("service", "HistoryLoader"), messages: messageRepo}
}

func (h *historyLoader) LoadRecent(ctx context.Context, threadID uuid.UUID, limit int) ([]*chat.Message, error) {
	if limit < 0 {
		return nil, apierr.InputFormat("history limit must be >= 0, got %d", limit)
	}
	if limit == 0 {
		return []*chat.Message{}, nil
	}
	return h.messages.ListRecent(dbctx.Context{Ctx: ctx}, threadID, limit)
}
