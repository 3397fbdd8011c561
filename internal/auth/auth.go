package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"golang.org/x/crypto/bcrypt"
)

// Role grants a level of access to the workspace
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every valid role
func Roles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// Status tracks account approval
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotPending         = errors.New("user is not pending approval")
)

// User is the persisted form of an account
type User struct {
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Status   Status `json:"status"`
}

// Authenticator is the credential check the workspace depends on
type Authenticator interface {
	Authenticate(username, password string) bool
	Role(username string) (Role, bool)
}

// Store keeps user accounts in a JSON file, rewritten on every change
type Store struct {
	path   string
	cost   int
	users  map[string]User
	logger *slog.Logger
}

// Open loads the user file at path; a missing file means no users yet
func Open(path string, logger *slog.Logger) (*Store, error) {
	return OpenWithCost(path, bcrypt.DefaultCost, logger)
}

// OpenWithCost is Open with an explicit bcrypt cost
func OpenWithCost(path string, cost int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		cost:   cost,
		users:  make(map[string]User),
		logger: logger,
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	if err := json.Unmarshal(raw, &s.users); err != nil {
		return nil, fmt.Errorf("failed to parse users: %w", err)
	}

	// accounts written before approval existed are active
	for name, u := range s.users {
		if u.Status == "" {
			u.Status = StatusActive
			s.users[name] = u
		}
	}

	logger.Info("users loaded", slog.Int("count", len(s.users)))
	return s, nil
}

// Register creates a pending account with role user
func (s *Store) Register(username, password string) error {
	return s.AddUser(username, password, RoleUser, StatusPending)
}

// AddUser creates an account with an explicit role and status
func (s *Store) AddUser(username, password string, role Role, status Status) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if _, exists := s.users[username]; exists {
		s.logger.Warn("user already exists", slog.String("username", username))
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.users[username] = User{Password: string(hash), Role: role, Status: status}
	if err := s.save(); err != nil {
		delete(s.users, username)
		return err
	}

	s.logger.Info("user added",
		slog.String("username", username),
		slog.String("role", string(role)),
		slog.String("status", string(status)),
	)
	return nil
}

// Authenticate checks the password of an active account
func (s *Store) Authenticate(username, password string) bool {
	u, ok := s.users[username]
	if !ok || u.Status != StatusActive {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// Role returns the role of an account
func (s *Store) Role(username string) (Role, bool) {
	u, ok := s.users[username]
	if !ok {
		return "", false
	}
	return u.Role, true
}

// Approve activates a pending account
func (s *Store) Approve(username string) error {
	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if u.Status != StatusPending {
		return ErrNotPending
	}
	u.Status = StatusActive
	return s.put(username, u)
}

// Reject deletes a pending account
func (s *Store) Reject(username string) error {
	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if u.Status != StatusPending {
		return ErrNotPending
	}
	return s.DeleteUser(username)
}

// ChangePassword replaces the password after verifying the old one
func (s *Store) ChangePassword(username, oldPassword, newPassword string) error {
	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	if newPassword == "" {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.Password = string(hash)
	return s.put(username, u)
}

// ChangeRole sets the role of an account
func (s *Store) ChangeRole(username string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	u.Role = role
	return s.put(username, u)
}

// DeleteUser removes an account
func (s *Store) DeleteUser(username string) error {
	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.users, username)
	if err := s.save(); err != nil {
		s.users[username] = u
		return err
	}
	s.logger.Info("user deleted", slog.String("username", username))
	return nil
}

// Pending returns the names of accounts awaiting approval, sorted
func (s *Store) Pending() []string {
	var names []string
	for name, u := range s.users {
		if u.Status == StatusPending {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Users returns every account name, sorted
func (s *Store) Users() []string {
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns an account without its password hash
func (s *Store) Lookup(username string) (User, bool) {
	u, ok := s.users[username]
	u.Password = ""
	return u, ok
}

func (s *Store) put(username string, u User) error {
	prev, existed := s.users[username]
	s.users[username] = u
	if err := s.save(); err != nil {
		if existed {
			s.users[username] = prev
		} else {
			delete(s.users, username)
		}
		return err
	}
	return nil
}

func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.users, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write temp users file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp → users file: %w", err)
	}
	return nil
}
