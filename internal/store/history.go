package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/leengari/automanager/internal/domain/data"
)

// Snapshot is a full copy of a table's rows captured before a mutation.
// The Rows slice is never modified after capture.
type Snapshot struct {
	OpID    string
	Op      EventType
	Rows    []data.Row
	TakenAt time.Time
}

func newSnapshot(op EventType, rows []data.Row) Snapshot {
	return Snapshot{
		OpID:    uuid.NewString(),
		Op:      op,
		Rows:    rows,
		TakenAt: time.Now(),
	}
}

// push appends snap, evicting the oldest entries when limit is positive
func push(stack []Snapshot, snap Snapshot, limit int) []Snapshot {
	stack = append(stack, snap)
	if limit > 0 && len(stack) > limit {
		excess := len(stack) - limit
		stack = append(stack[:0:0], stack[excess:]...)
	}
	return stack
}

// pop removes and returns the newest entry; ok is false on an empty stack
func pop(stack []Snapshot) ([]Snapshot, Snapshot, bool) {
	if len(stack) == 0 {
		return stack, Snapshot{}, false
	}
	last := stack[len(stack)-1]
	return stack[:len(stack)-1], last, true
}
