package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/leengari/automanager/internal/domain/data"
	domainerrors "github.com/leengari/automanager/internal/domain/errors"
	"github.com/leengari/automanager/internal/domain/schema"
	"github.com/leengari/automanager/internal/storage/csvfile"
)

// Resolver gives the store a table's schema and file location
type Resolver interface {
	Lookup(name string) (schema.TableSchema, bool)
}

// tableState is the in-memory copy of one opened table
type tableState struct {
	path string
	rows []data.Row
	undo []Snapshot
	redo []Snapshot
}

// Store holds the rows and undo/redo history of every table opened through it.
// Every mutation rewrites the whole backing file before returning.
// A Store is not safe for concurrent use.
type Store struct {
	resolver     Resolver
	tables       map[string]*tableState
	historyLimit int
	observers    []Observer
	logger       *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for store events
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistoryLimit keeps at most limit undo snapshots per table.
// A limit of zero or less keeps every snapshot.
func WithHistoryLimit(limit int) Option {
	return func(s *Store) {
		s.historyLimit = limit
	}
}

// New creates a store over the tables known to resolver.
// Without options history is unbounded and events go to slog.Default.
func New(resolver Resolver, opts ...Option) *Store {
	s := &Store{
		resolver:  resolver,
		tables:    make(map[string]*tableState),
		observers: make([]Observer, 0),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadAll returns a copy of every row in table order.
// A table whose backing file is absent reads as empty.
func (s *Store) ReadAll(name string) ([]data.Row, error) {
	_, st, err := s.open(name)
	if err != nil {
		return nil, err
	}
	return data.CopyRows(st.rows), nil
}

// AppendRow adds row at the end of the table
func (s *Store) AppendRow(name string, row data.Row) error {
	sc, st, err := s.open(name)
	if err != nil {
		return err
	}
	if err := sc.ValidateRow(row); err != nil {
		return err
	}
	if err := requireFile(sc); err != nil {
		return err
	}

	next := make([]data.Row, len(st.rows), len(st.rows)+1)
	copy(next, st.rows)
	next = append(next, row.Copy())

	return s.commit(sc, st, EventAppend, len(st.rows), next)
}

// UpdateRow replaces the row at index
func (s *Store) UpdateRow(name string, index int, row data.Row) error {
	sc, st, err := s.open(name)
	if err != nil {
		return err
	}
	if err := checkIndex(sc.Name, index, len(st.rows)); err != nil {
		return err
	}
	if err := sc.ValidateRow(row); err != nil {
		return err
	}
	if err := requireFile(sc); err != nil {
		return err
	}

	next := slices.Clone(st.rows)
	next[index] = row.Copy()

	return s.commit(sc, st, EventUpdate, index, next)
}

// DeleteRow removes the row at index; later rows move down by one
func (s *Store) DeleteRow(name string, index int) error {
	sc, st, err := s.open(name)
	if err != nil {
		return err
	}
	if err := checkIndex(sc.Name, index, len(st.rows)); err != nil {
		return err
	}
	if err := requireFile(sc); err != nil {
		return err
	}

	next := make([]data.Row, 0, len(st.rows)-1)
	next = append(next, st.rows[:index]...)
	next = append(next, st.rows[index+1:]...)

	return s.commit(sc, st, EventDelete, index, next)
}

// SearchFirst returns the first row whose value at field equals value.
// ok is false when nothing matches or the table has no such field.
func (s *Store) SearchFirst(name, field, value string) (data.Match, bool, error) {
	sc, st, err := s.open(name)
	if err != nil {
		return data.Match{}, false, err
	}

	col := sc.FieldIndex(field)
	if col < 0 {
		return data.Match{}, false, nil
	}
	for i, row := range st.rows {
		if row.Get(col) == value {
			return data.Match{Index: i, Row: row.Copy()}, true, nil
		}
	}
	return data.Match{}, false, nil
}

// SearchAll returns every row whose value at field equals value, in row order
func (s *Store) SearchAll(name, field, value string) ([]data.Match, error) {
	sc, st, err := s.open(name)
	if err != nil {
		return nil, err
	}

	matches := []data.Match{}
	col := sc.FieldIndex(field)
	if col < 0 {
		return matches, nil
	}
	for i, row := range st.rows {
		if row.Get(col) == value {
			matches = append(matches, data.Match{Index: i, Row: row.Copy()})
		}
	}
	return matches, nil
}

// Undo restores the rows captured before the most recent mutation.
// It returns false, without touching anything, when there is nothing to undo.
func (s *Store) Undo(name string) (bool, error) {
	sc, st, err := s.open(name)
	if err != nil {
		return false, err
	}
	if len(st.undo) == 0 {
		return false, nil
	}
	if err := requireFile(sc); err != nil {
		return false, err
	}

	undo, snap, _ := pop(st.undo)
	if err := csvfile.Write(sc.FilePath, sc.Fields, snap.Rows); err != nil {
		return false, err
	}

	st.redo = append(st.redo, Snapshot{OpID: snap.OpID, Op: snap.Op, Rows: st.rows, TakenAt: snap.TakenAt})
	st.undo = undo
	st.rows = snap.Rows

	s.notify(Event{Type: EventUndo, Table: sc.Name, OpID: snap.OpID, Index: -1, RowCount: len(st.rows)})
	return true, nil
}

// Redo re-applies the most recently undone mutation.
// It returns false, without touching anything, when there is nothing to redo.
func (s *Store) Redo(name string) (bool, error) {
	sc, st, err := s.open(name)
	if err != nil {
		return false, err
	}
	if len(st.redo) == 0 {
		return false, nil
	}
	if err := requireFile(sc); err != nil {
		return false, err
	}

	redo, snap, _ := pop(st.redo)
	if err := csvfile.Write(sc.FilePath, sc.Fields, snap.Rows); err != nil {
		return false, err
	}

	st.undo = push(st.undo, Snapshot{OpID: snap.OpID, Op: snap.Op, Rows: st.rows, TakenAt: snap.TakenAt}, s.historyLimit)
	st.redo = redo
	st.rows = snap.Rows

	s.notify(Event{Type: EventRedo, Table: sc.Name, OpID: snap.OpID, Index: -1, RowCount: len(st.rows)})
	return true, nil
}

// History reports the current undo and redo depths of a table
func (s *Store) History(name string) (undo, redo int, err error) {
	_, st, err := s.open(name)
	if err != nil {
		return 0, 0, err
	}
	return len(st.undo), len(st.redo), nil
}

// RenameTable moves the in-memory state of oldName, history included, to
// newName. Call it after the catalog has renamed the table.
func (s *Store) RenameTable(oldName, newName string) {
	st, ok := s.tables[oldName]
	if !ok {
		return
	}
	delete(s.tables, oldName)
	if sc, ok := s.resolver.Lookup(newName); ok {
		st.path = sc.FilePath
	}
	s.tables[newName] = st
}

// Forget drops the in-memory state of a table
func (s *Store) Forget(name string) {
	delete(s.tables, name)
}

// open resolves name and loads its rows on first use.
// State loaded for a different file location than the catalog now reports is
// discarded and reloaded.
func (s *Store) open(name string) (schema.TableSchema, *tableState, error) {
	sc, ok := s.resolver.Lookup(name)
	if !ok {
		return schema.TableSchema{}, nil, &domainerrors.TableNotFoundError{TableName: name}
	}

	if st, ok := s.tables[name]; ok && st.path == sc.FilePath {
		return sc, st, nil
	}

	rows, err := s.load(sc)
	if err != nil {
		return schema.TableSchema{}, nil, err
	}

	st := &tableState{path: sc.FilePath, rows: rows}
	s.tables[name] = st

	s.notify(Event{Type: EventLoad, Table: name, Index: -1, RowCount: len(rows)})
	return sc, st, nil
}

func (s *Store) load(sc schema.TableSchema) ([]data.Row, error) {
	header, rows, err := csvfile.Read(sc.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("table file absent, reading as empty",
			slog.String("table", sc.Name),
			slog.String("path", sc.FilePath),
		)
		return []data.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load table %s: %w", sc.Name, err)
	}

	if header != nil && !slices.Equal(header, sc.Fields) {
		return nil, &domainerrors.SchemaMismatchError{
			TableName: sc.Name,
			Expected:  slices.Clone(sc.Fields),
			Found:     header,
		}
	}

	s.logger.Debug("table loaded",
		slog.String("table", sc.Name),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}

// commit writes next to disk and only then swaps it in, so a failed write
// leaves rows and history exactly as they were.
func (s *Store) commit(sc schema.TableSchema, st *tableState, op EventType, index int, next []data.Row) error {
	if err := csvfile.Write(sc.FilePath, sc.Fields, next); err != nil {
		return err
	}

	snap := newSnapshot(op, st.rows)
	st.undo = push(st.undo, snap, s.historyLimit)
	st.redo = nil
	st.rows = next

	s.notify(Event{Type: op, Table: sc.Name, OpID: snap.OpID, Index: index, RowCount: len(next)})
	return nil
}

func checkIndex(table string, index, count int) error {
	if index < 0 || index >= count {
		return &domainerrors.IndexOutOfRangeError{TableName: table, Index: index, RowCount: count}
	}
	return nil
}

func requireFile(sc schema.TableSchema) error {
	exists, err := csvfile.Exists(sc.FilePath)
	if err != nil {
		return err
	}
	if !exists {
		return &domainerrors.BackingFileMissingError{TableName: sc.Name, Path: sc.FilePath}
	}
	return nil
}
