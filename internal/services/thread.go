package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/threadchat-backend/internal/data/repos"
	"github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

type ThreadSummary struct {
	Thread       *chat.Thread
	MessageCount int64
	LastIdx      *int64
}

type ThreadService interface {
	// Default returns the configured default thread, creating it on first use.
	Default(ctx context.Context) (*chat.Thread, error)
	// Resolve gets or creates the thread with title; blank means the default.
	Resolve(ctx context.Context, title string) (*chat.Thread, error)
	Get(ctx context.Context, id uuid.UUID) (*chat.Thread, error)
	List(ctx context.Context, limit int) ([]*chat.Thread, error)
	Summary(ctx context.Context, id uuid.UUID) (*ThreadSummary, error)
	Export(ctx context.Context, id uuid.UUID) (*chat.Thread, []*chat.Message, error)
}

type threadService struct {
	log          *logger.Logger
	threads      repos.ThreadRepo
	messages     repos.MessageRepo
	defaultTitle string
}

func NewThreadService(baseLog *logger.Logger, threadRepo repos.ThreadRepo, messageRepo repos.MessageRepo, defaultTitle string) ThreadService {
	defaultTitle = strings.TrimSpace(defaultTitle)
	if defaultTitle == "" {
		defaultTitle = "Chat"
	}
	return &threadService{
		log:          baseLog.With("service", "ThreadService"),
		threads:      threadRepo,
		messages:     messageRepo,
		defaultTitle: defaultTitle,
	}
}

func (s *threadService) Default(ctx context.Context) (*chat.Thread, error) {
	return s.Resolve(ctx, "")
}

func (s *threadService) Resolve(ctx context.Context, title string) (*chat.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = s.defaultTitle
	}
	return s.threads.GetOrCreateByTitle(dbctx.Context{Ctx: ctx}, title)
}

func (s *threadService) Get(ctx context.Context, id uuid.UUID) (*chat.Thread, error) {
	th, err := s.threads.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		if errors.Is(err, chat.ErrThreadNotFound) {
			return nil, apierr.NotFound(err)
		}
		return nil, err
	}
	return th, nil
}

func (s *threadService) List(ctx context.Context, limit int) ([]*chat.Thread, error) {
	if limit < 0 {
		return nil, apierr.InputFormat("limit must be >= 0")
	}
	threads, err := s.threads.List(dbctx.Context{Ctx: ctx}, limit)
	if err != nil {
		return nil, err
	}
	if threads == nil {
		threads = []*chat.Thread{}
	}
	return threads, nil
}

func (s *threadService) Summary(ctx context.Context, id uuid.UUID) (*ThreadSummary, error) {
	th, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	n, err := s.messages.Count(dbc, th.ID)
	if err != nil {
		return nil, err
	}
	out := &ThreadSummary{Thread: th, MessageCount: n}
	last, ok, err := s.messages.LastIdx(dbc, th.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		out.LastIdx = &last
	}
	return out, nil
}

func (s *threadService) Export(ctx context.Context, id uuid.UUID) (*chat.Thread, []*chat.Message, error) {
	th, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByThread(dbctx.Context{Ctx: ctx}, th.ID)
	if err != nil {
		return nil, nil, err
	}
	return th, msgs, nil
}
