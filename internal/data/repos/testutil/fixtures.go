package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/threadchat-backend/internal/domain/chat"
)

// UniqueTitle keeps titles distinct when tests share a Postgres database.
func UniqueTitle(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func SeedThread(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *chat.Thread {
	tb.Helper()
	th := &chat.Thread{ID: uuid.New(), Title: title}
	if err := tx.WithContext(ctx).Create(th).Error; err != nil {
		tb.Fatalf("seed thread: %v", err)
	}
	return th
}

func SeedMessages(tb testing.TB, ctx context.Context, tx *gorm.DB, threadID uuid.UUID, texts ...string) []chat.Message {
	tb.Helper()
	out := make([]chat.Message, 0, len(texts))
	for i, text := range texts {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		m := chat.Message{ThreadID: threadID, Idx: int64(i), Role: role, Content: chat.TextContent(text)}
		if err := tx.WithContext(ctx).Create(&m).Error; err != nil {
			tb.Fatalf("seed message %d: %v", i, err)
		}
		out = append(out, m)
	}
	return out
}
