package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/threadchat-backend/internal/data/repos/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

type ThreadRepo = chat.ThreadRepo
type MessageRepo = chat.MessageRepo

type Repos struct {
	Threads  ThreadRepo
	Messages MessageRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Threads:  chat.NewThreadRepo(db, log),
		Messages: chat.NewMessageRepo(db, log),
	}
}
