package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Message is one turn of a thread. (ThreadID, Idx) is the primary key and
// Idx runs 0..n-1 without gaps.
type Message struct {
	ThreadID  uuid.UUID `gorm:"type:uuid;primaryKey;autoIncrement:false" json:"thread_id"`
	Idx       int64     `gorm:"column:idx;primaryKey;autoIncrement:false" json:"idx"`
	Role      Role      `gorm:"column:role;type:text;not null" json:"role"`
	Content   Content   `gorm:"column:content;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`

	Thread *Thread `gorm:"foreignKey:ThreadID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string { return "messages" }

// NewMessage is the input shape for appends; the log assigns Idx.
type NewMessage struct {
	Role    Role
	Content Content
}
