package engine

import (
	"context"
	"errors"
)

type Message struct {
	Role    string
	Content string
}

type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// SnapshotFunc receives the cumulative text generated so far. Returning an
// error aborts the stream.
type SnapshotFunc func(snapshot string) error

// Engine produces a streamed completion as a sequence of cumulative
// snapshots and returns the final text.
type Engine interface {
	Name() string
	Stream(ctx context.Context, messages []Message, opts GenerateOptions, onSnapshot SnapshotFunc) (full string, err error)
}

var ErrEmptyResponse = errors.New("engine returned no output")
