package conversation

import (
	"strings"
	"sync"
	"time"

	"bnrag/internal/domain"
)

const (
	DefaultCapacity   = 10
	DefaultRecentView = 4
)

// Window is a bounded, ordered log of conversation turns. The oldest turn is
// evicted when capacity is exceeded. It is safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	capacity int
	turns    []domain.Turn
	now      func() time.Time
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{capacity: capacity, now: time.Now}
}

// Push appends a turn, stamping it when Timestamp is zero.
func (w *Window) Push(turn domain.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = w.now()
	}
	w.turns = append(w.turns, turn)
	if over := len(w.turns) - w.capacity; over > 0 {
		w.turns = append(w.turns[:0:0], w.turns[over:]...)
	}
}

// Add is a shorthand for Push with the given role and content.
func (w *Window) Add(role domain.Role, content string) {
	w.Push(domain.Turn{Role: role, Content: content})
}

// Recent returns a copy of the last n turns, oldest first.
func (w *Window) Recent(n int) []domain.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(w.turns) {
		n = len(w.turns)
	}
	out := make([]domain.Turn, n)
	copy(out, w.turns[len(w.turns)-n:])
	return out
}

// All returns a copy of every retained turn.
func (w *Window) All() []domain.Turn {
	return w.Recent(w.capacity)
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.turns)
}

func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
}

// Format renders turns as "User: ..." / "Assistant: ..." lines.
func Format(turns []domain.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role == domain.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}
