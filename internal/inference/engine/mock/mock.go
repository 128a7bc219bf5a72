package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yungbote/threadchat-backend/internal/inference/engine"
)

// Engine is a deterministic engine for local runs and tests. With no script
// it echoes the last user message back in small chunks.
type Engine struct {
	// Snapshots, when set, are emitted verbatim in order.
	Snapshots []string
	// FailAfter makes Stream return Err after that many snapshots.
	FailAfter int
	Err       error
	ChunkSize int

	mu    sync.Mutex
	calls []Call
}

type Call struct {
	Messages []engine.Message
	Opts     engine.GenerateOptions
}

func New() *Engine {
	return &Engine{ChunkSize: 16}
}

// Scripted returns an engine that emits the given cumulative snapshots.
func Scripted(snapshots ...string) *Engine {
	if snapshots == nil {
		snapshots = []string{}
	}
	return &Engine{Snapshots: snapshots, ChunkSize: 16}
}

// Failing returns an engine that emits snapshots and then fails with err.
func Failing(err error, snapshots ...string) *Engine {
	return &Engine{Snapshots: snapshots, FailAfter: len(snapshots), Err: err, ChunkSize: 16}
}

func (e *Engine) Name() string { return "mock" }

func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *Engine) Stream(ctx context.Context, messages []engine.Message, opts engine.GenerateOptions, onSnapshot engine.SnapshotFunc) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Messages: append([]engine.Message(nil), messages...), Opts: opts})
	e.mu.Unlock()

	snaps := e.Snapshots
	if snaps == nil && e.Err == nil {
		snaps = chunked(echo(messages), e.ChunkSize)
	}

	last := ""
	for i, s := range snaps {
		if e.Err != nil && i >= e.FailAfter {
			return "", e.Err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if onSnapshot != nil {
			if err := onSnapshot(s); err != nil {
				return "", err
			}
		}
		last = s
	}
	if e.Err != nil {
		return "", e.Err
	}
	return last, nil
}

func echo(messages []engine.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") && strings.TrimSpace(messages[i].Content) != "" {
			return fmt.Sprintf("mock: %s", messages[i].Content)
		}
	}
	return "mock: ok"
}

// chunked returns growing prefixes of s, split on rune boundaries.
func chunked(s string, size int) []string {
	if size <= 0 {
		size = 16
	}
	var out []string
	n := 0
	for i := range s {
		if n > 0 && n%size == 0 {
			out = append(out, s[:i])
		}
		n++
	}
	if utf8.RuneCountInString(s) > 0 {
		out = append(out, s)
	}
	return out
}
