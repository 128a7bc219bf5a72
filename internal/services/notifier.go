package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/realtime"
)

type Publisher interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
}

type ChatNotifier interface {
	MessagesAppended(ctx context.Context, threadID uuid.UUID, indices []int64)
}

type chatNotifier struct {
	pub Publisher
	log *logger.Logger
}

func NewChatNotifier(pub Publisher, baseLog *logger.Logger) ChatNotifier {
	return &chatNotifier{pub: pub, log: baseLog.With("component", "ChatNotifier")}
}

// MessagesAppended is best effort; a failed publish is logged and dropped.
func (n *chatNotifier) MessagesAppended(ctx context.Context, threadID uuid.UUID, indices []int64) {
	if n == nil || n.pub == nil || threadID == uuid.Nil || len(indices) == 0 {
		return
	}
	err := n.pub.Publish(context.WithoutCancel(ctx), realtime.SSEMessage{
		Channel: threadID.String(),
		Event:   realtime.SSEEventMessagesAppended,
		Data: map[string]any{
			"thread_id": threadID,
			"indices":   indices,
		},
	})
	if err != nil {
		n.log.Warn("Failed to publish messages.appended", "thread_id", threadID, "error", err)
	}
}
