package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leengari/automanager/internal/auth"
	"github.com/leengari/automanager/internal/backup"
	"github.com/leengari/automanager/internal/catalog"
	"github.com/leengari/automanager/internal/config"
	"github.com/leengari/automanager/internal/domain/data"
	"github.com/leengari/automanager/internal/store"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrForbidden        = errors.New("operation requires admin role")
	ErrNoBackuper       = errors.New("backups are not configured")
)

// Session is the result of a successful login
type Session struct {
	Token     string
	Username  string
	Role      auth.Role
	StartedAt time.Time
}

// IsAdmin reports whether the session may run admin-only operations
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == auth.RoleAdmin
}

// Workspace is the front-end facing API over the catalog and the record store.
// Every table operation requires a session from Login. Calls are serialized,
// so one Workspace may be shared by many goroutines.
type Workspace struct {
	mu          sync.Mutex
	catalog     *catalog.Catalog
	store       *store.Store
	auth        auth.Authenticator
	backuper    backup.Backuper
	parallelism int
	sessions    map[string]*Session
	logger      *slog.Logger
}

// New assembles a workspace from its parts. backuper may be nil.
func New(cat *catalog.Catalog, st *store.Store, authn auth.Authenticator, backuper backup.Backuper, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		catalog:     cat,
		store:       st,
		auth:        authn,
		backuper:    backuper,
		parallelism: 1,
		sessions:    make(map[string]*Session),
		logger:      logger,
	}
}

// Open wires a workspace from configuration and returns it with its user store
func Open(cfg *config.Config, logger *slog.Logger) (*Workspace, *auth.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cat, err := catalog.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	users, err := auth.Open(cfg.UsersFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open users: %w", err)
	}

	st := store.New(cat, store.WithLogger(logger), store.WithHistoryLimit(cfg.HistoryLimit))
	st.AddObserver(store.NewLoggingObserver(logger))

	ws := New(cat, st, users, backup.NewLocal(cfg.Backup.Dir, logger), logger)
	ws.parallelism = cfg.Backup.Parallelism

	logger.Info("workspace ready",
		slog.String("data_dir", cfg.DataDir),
		slog.Int("table_count", len(cat.ListTables())),
		slog.Int("history_limit", cfg.HistoryLimit),
	)
	return ws, users, nil
}

// Login authenticates a user and opens a session
func (w *Workspace) Login(username, password string) (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.auth.Authenticate(username, password) {
		w.logger.Warn("login failed", slog.String("username", username))
		return nil, auth.ErrInvalidCredentials
	}
	role, _ := w.auth.Role(username)

	s := &Session{
		Token:     uuid.NewString(),
		Username:  username,
		Role:      role,
		StartedAt: time.Now(),
	}
	w.sessions[s.Token] = s

	w.logger.Info("login",
		slog.String("username", username),
		slog.String("role", string(role)),
	)
	return s, nil
}

// Logout ends a session
func (w *Workspace) Logout(s *Session) {
	if s == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, s.Token)
}

// Session looks up an open session by token
func (w *Workspace) Session(token string) (*Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[token]
	return s, ok
}

// CreateTable registers a table and creates its backing file
func (w *Workspace) CreateTable(s *Session, name string, fields []string) (string, error) {
	if err := w.lock(s); err != nil {
		return "", err
	}
	defer w.mu.Unlock()
	return w.catalog.CreateTable(name, fields)
}

// ListTables returns every table name
func (w *Workspace) ListTables(s *Session) ([]string, error) {
	if err := w.lock(s); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	return w.catalog.ListTables(), nil
}

// Fields returns a table's ordered field names; unknown tables yield none
func (w *Workspace) Fields(s *Session, name string) ([]string, error) {
	if err := w.lock(s); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	return w.catalog.Fields(name), nil
}

// RenameTable renames a table, keeping its rows and history. Admin only.
func (w *Workspace) RenameTable(s *Session, oldName, newName string) error {
	if err := w.lockAdmin(s); err != nil {
		return err
	}
	defer w.mu.Unlock()

	if err := w.catalog.RenameTable(oldName, newName); err != nil {
		return err
	}
	w.store.RenameTable(oldName, newName)
	return nil
}

// DeleteTable removes a table and its file. Admin only.
func (w *Workspace) DeleteTable(s *Session, name string) error {
	if err := w.lockAdmin(s); err != nil {
		return err
	}
	defer w.mu.Unlock()

	if err := w.catalog.DeleteTable(name); err != nil {
		return err
	}
	w.store.Forget(name)
	return nil
}

// BackingPath exposes the current file location of a table
func (w *Workspace) BackingPath(s *Session, name string) (string, error) {
	if err := w.lock(s); err != nil {
		return "", err
	}
	defer w.mu.Unlock()
	return w.catalog.Path(name)
}

// ReadAll returns every row of a table
func (w *Workspace) ReadAll(s *Session, name string) ([]data.Row, error) {
	if err := w.lock(s); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	return w.store.ReadAll(name)
}

// AppendRow adds a row at the end of a table
func (w *Workspace) AppendRow(s *Session, name string, row data.Row) error {
	if err := w.lock(s); err != nil {
		return err
	}
	defer w.mu.Unlock()
	return w.store.AppendRow(name, row)
}

// UpdateRow replaces the row at index
func (w *Workspace) UpdateRow(s *Session, name string, index int, row data.Row) error {
	if err := w.lock(s); err != nil {
		return err
	}
	defer w.mu.Unlock()
	return w.store.UpdateRow(name, index, row)
}

// DeleteRow removes the row at index
func (w *Workspace) DeleteRow(s *Session, name string, index int) error {
	if err := w.lock(s); err != nil {
		return err
	}
	defer w.mu.Unlock()
	return w.store.DeleteRow(name, index)
}

// SearchFirst finds the first row whose field equals value
func (w *Workspace) SearchFirst(s *Session, name, field, value string) (data.Match, bool, error) {
	if err := w.lock(s); err != nil {
		return data.Match{}, false, err
	}
	defer w.mu.Unlock()
	return w.store.SearchFirst(name, field, value)
}

// SearchAll finds every row whose field equals value
func (w *Workspace) SearchAll(s *Session, name, field, value string) ([]data.Match, error) {
	if err := w.lock(s); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	return w.store.SearchAll(name, field, value)
}

// Undo reverts the latest mutation of a table
func (w *Workspace) Undo(s *Session, name string) (bool, error) {
	if err := w.lock(s); err != nil {
		return false, err
	}
	defer w.mu.Unlock()
	return w.store.Undo(name)
}

// Redo re-applies the latest undone mutation of a table
func (w *Workspace) Redo(s *Session, name string) (bool, error) {
	if err := w.lock(s); err != nil {
		return false, err
	}
	defer w.mu.Unlock()
	return w.store.Redo(name)
}

// History reports undo and redo depths of a table
func (w *Workspace) History(s *Session, name string) (undo, redo int, err error) {
	if err := w.lock(s); err != nil {
		return 0, 0, err
	}
	defer w.mu.Unlock()
	return w.store.History(name)
}

// Backup archives the named tables, or every table when names is empty. Admin only.
func (w *Workspace) Backup(ctx context.Context, s *Session, names ...string) ([]backup.Result, error) {
	if err := w.lockAdmin(s); err != nil {
		return nil, err
	}
	if w.backuper == nil {
		w.mu.Unlock()
		return nil, ErrNoBackuper
	}

	if len(names) == 0 {
		names = w.catalog.ListTables()
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := w.catalog.Path(name)
		if err != nil {
			w.mu.Unlock()
			return nil, err
		}
		paths = append(paths, path)
	}
	// table files are only ever replaced by rename; archive without the lock
	w.mu.Unlock()

	return backup.All(ctx, w.backuper, paths, w.parallelism)
}

// lock acquires the workspace lock for a valid session.
// On success the caller must unlock.
func (w *Workspace) lock(s *Session) error {
	w.mu.Lock()
	if s == nil || w.sessions[s.Token] != s {
		w.mu.Unlock()
		return ErrNotAuthenticated
	}
	return nil
}

func (w *Workspace) lockAdmin(s *Session) error {
	if err := w.lock(s); err != nil {
		return err
	}
	if !s.IsAdmin() {
		w.mu.Unlock()
		w.logger.Warn("admin operation refused", slog.String("username", s.Username))
		return ErrForbidden
	}
	return nil
}
