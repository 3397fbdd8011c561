package store

import (
	"log/slog"
	"time"
)

// EventType names the store operation that produced an event
type EventType string

const (
	EventAppend EventType = "append"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	EventUndo   EventType = "undo"
	EventRedo   EventType = "redo"
	EventLoad   EventType = "load"
)

// Event is emitted after a store operation has reached disk
type Event struct {
	Type      EventType // Type of event
	Table     string    // Table the operation ran against
	OpID      string    // ID of the snapshot the operation pushed or consumed
	Index     int       // Affected row position, -1 when not row-specific
	RowCount  int       // Row count after the operation
	Timestamp time.Time // When the event occurred
}

// Observer interface for event subscribers
type Observer interface {
	OnEvent(event Event)
}

// LoggingObserver logs every store event using structured logging
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// OnEvent implements the Observer interface
func (lo *LoggingObserver) OnEvent(event Event) {
	lo.logger.Info("store_event",
		"event", event.Type,
		"table", event.Table,
		"op_id", event.OpID,
		"index", event.Index,
		"row_count", event.RowCount,
		"timestamp", event.Timestamp,
	)
}

// AddObserver registers an observer
func (s *Store) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// RemoveObserver unregisters an observer
func (s *Store) RemoveObserver(o Observer) {
	for i, obs := range s.observers {
		if obs == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) notify(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, o := range s.observers {
		o.OnEvent(event)
	}
}
