package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Thread struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"column:title;type:text;not null;uniqueIndex:idx_threads_title" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime;index" json:"created_at"`
}

func (Thread) TableName() string { return "threads" }

func (t *Thread) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}
