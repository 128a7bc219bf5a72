package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/threadchat-backend/internal/chat/stream"
	"github.com/yungbote/threadchat-backend/internal/data/repos"
	"github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/inference/engine"
	"github.com/yungbote/threadchat-backend/internal/observability"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/ctxutil"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

type ChatConfig struct {
	HistoryLimit int
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
}

type StreamRequest struct {
	Message     string
	ThreadTitle string
	ThreadID    *uuid.UUID
}

type StreamResult struct {
	ThreadID uuid.UUID
	Indices  []int64
	Text     string
}

// Turn is a validated request with its thread and history already loaded.
// Nothing has been written yet.
type Turn struct {
	Thread  *chat.Thread
	Message string
	History []*chat.Message
}

type ChatService interface {
	// Prepare resolves the thread and loads history. All request errors
	// surface here, before any response bytes are written.
	Prepare(ctx context.Context, req StreamRequest) (*Turn, error)
	// Stream runs the engine for turn, passing each non-empty delta to emit,
	// and appends the user and assistant messages once the engine finishes.
	// On any failure nothing is persisted.
	Stream(ctx context.Context, turn *Turn, emit func(delta string) error) (*StreamResult, error)
	StreamReply(ctx context.Context, req StreamRequest, emit func(delta string) error) (*StreamResult, error)
}

type chatService struct {
	log      *logger.Logger
	cfg      ChatConfig
	threads  ThreadService
	history  HistoryLoader
	messages repos.MessageRepo
	engine   engine.Engine
	notify   ChatNotifier
}

func NewChatService(
	baseLog *logger.Logger,
	cfg ChatConfig,
	threadService ThreadService,
	history HistoryLoader,
	messageRepo repos.MessageRepo,
	eng engine.Engine,
	notify ChatNotifier,
) ChatService {
	return &chatService{
		log:      baseLog.With("service", "ChatService"),
		cfg:      cfg,
		threads:  threadService,
		history:  history,
		messages: messageRepo,
		engine:   eng,
		notify:   notify,
	}
}

func (s *chatService) Prepare(ctx context.Context, req StreamRequest) (*Turn, error) {
	msg := req.Message
	if strings.TrimSpace(msg) == "" {
		return nil, apierr.InputFormat("message is required")
	}

	var (
		th  *chat.Thread
		err error
	)
	if req.ThreadID != nil && *req.ThreadID != uuid.Nil {
		th, err = s.threads.Get(ctx, *req.ThreadID)
	} else {
		th, err = s.threads.Resolve(ctx, req.ThreadTitle)
	}
	if err != nil {
		return nil, err
	}

	hist, err := s.history.LoadRecent(ctx, th.ID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return &Turn{Thread: th, Message: msg, History: hist}, nil
}

func (s *chatService) StreamReply(ctx context.Context, req StreamRequest, emit func(delta string) error) (*StreamResult, error) {
	turn, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Stream(ctx, turn, emit)
}

func (s *chatService) Stream(ctx context.Context, turn *Turn, emit func(delta string) error) (*StreamResult, error) {
	if turn == nil || turn.Thread == nil {
		return nil, errors.New("stream: turn not prepared")
	}
	ctx, span := observability.Tracer().Start(ctx, "chat.stream_reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("thread.id", turn.Thread.ID.String()),
		attribute.Int("history.count", len(turn.History)),
		attribute.String("engine", s.engine.Name()),
	)

	log := s.log.With("thread_id", turn.Thread.ID, "request_id", ctxutil.RequestID(ctx))

	var (
		tracker stream.Tracker
		deltas  int
	)
	forward := func(snapshot string) error {
		delta, ok := tracker.Next(snapshot)
		if !ok {
			return nil
		}
		deltas++
		if emit == nil {
			return nil
		}
		if err := emit(delta); err != nil {
			return fmt.Errorf("emit: %w", err)
		}
		return nil
	}

	full, err := s.engine.Stream(ctx, s.buildPrompt(turn), engine.GenerateOptions{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}, forward)
	if err == nil {
		err = forward(full)
	}
	if err == nil && tracker.Len() == 0 {
		err = engine.ErrEmptyResponse
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		log.Warn("Chat stream aborted; nothing persisted", "error", err, "deltas", deltas)
		return nil, apierr.StreamFailure(err)
	}

	text := tracker.Text()
	idx, err := s.messages.Append(dbctx.Context{Ctx: ctx}, turn.Thread.ID, []chat.NewMessage{
		{Role: chat.RoleUser, Content: chat.TextContent(turn.Message)},
		{Role: chat.RoleAssistant, Content: chat.TextContent(text)},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		log.Error("Failed to persist chat exchange", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("deltas", deltas), attribute.Int("assistant.bytes", len(text)))
	log.Debug("Chat exchange persisted", "indices", idx, "deltas", deltas)

	if s.notify != nil {
		s.notify.MessagesAppended(ctx, turn.Thread.ID, idx)
	}
	return &StreamResult{ThreadID: turn.Thread.ID, Indices: idx, Text: text}, nil
}

func (s *chatService) buildPrompt(turn *Turn) []engine.Message {
	out := make([]engine.Message, 0, len(turn.History)+2)
	if p := strings.TrimSpace(s.cfg.SystemPrompt); p != "" {
		out = append(out, engine.Message{Role: string(chat.RoleSystem), Content: p})
	}
	for _, m := range turn.History {
		out = append(out, engine.Message{Role: string(m.Role), Content: m.Content.String()})
	}
	out = append(out, engine.Message{Role: string(chat.RoleUser), Content: turn.Message})
	return out
}
