package stream

import (
	"strings"
	"unicode/utf8"
)

// Tracker turns cumulative snapshots into forward-only deltas.
// Text always equals the concatenation of every delta returned by Next.
type Tracker struct {
	emitted strings.Builder

	// consumed is the byte offset into the snapshots already covered.
	consumed int
}

// Next returns the part of snapshot not yet emitted. ok is false when the
// snapshot adds nothing. If the engine rewrote earlier text, only the bytes
// beyond what was already covered are returned, starting on a rune boundary.
func (t *Tracker) Next(snapshot string) (string, bool) {
	if len(snapshot) <= t.consumed {
		return "", false
	}
	start := t.consumed
	for start > 0 && !utf8.RuneStart(snapshot[start]) {
		start--
	}
	delta := snapshot[start:]
	t.consumed = len(snapshot)
	t.emitted.WriteString(delta)
	return delta, true
}

func (t *Tracker) Text() string {
	return t.emitted.String()
}

func (t *Tracker) Len() int {
	return t.emitted.Len()
}
