package chat

import "errors"

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrConflict       = errors.New("message index conflict")
	ErrInvalidRole    = errors.New("invalid message role")
	ErrEmptyTitle     = errors.New("thread title is required")
)
