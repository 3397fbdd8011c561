package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := OpenWithCost(path, bcrypt.MinCost, nil)
	if err != nil {
		t.Fatalf("failed to open user store: %v", err)
	}
	return s, path
}

func TestRegisterIsPendingUntilApproved(t *testing.T) {
	s, _ := openTestStore(t)

	assert.NilError(t, s.Register("frank", "secret"))
	assert.Check(t, !s.Authenticate("frank", "secret"), "pending users cannot log in")
	assert.DeepEqual(t, s.Pending(), []string{"frank"})

	assert.NilError(t, s.Approve("frank"))
	assert.Check(t, s.Authenticate("frank", "secret"))
	assert.Check(t, !s.Authenticate("frank", "wrong"))
	assert.Check(t, is.Len(s.Pending(), 0))

	role, ok := s.Role("frank")
	assert.Assert(t, ok)
	assert.Equal(t, role, RoleUser)

	err := s.Approve("frank")
	assert.Assert(t, errors.Is(err, ErrNotPending))
}

func TestRegisterDuplicate(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NilError(t, s.Register("frank", "secret"))

	err := s.Register("frank", "other")
	assert.Assert(t, errors.Is(err, ErrUserExists))
}

func TestPasswordIsHashed(t *testing.T) {
	s, path := openTestStore(t)
	assert.NilError(t, s.AddUser("grace", "hunter2", RoleAdmin, StatusActive))

	raw, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Check(t, !strings.Contains(string(raw), "hunter2"))
	assert.Check(t, is.Contains(string(raw), `"role": "admin"`))
}

func TestReopenKeepsUsers(t *testing.T) {
	s, path := openTestStore(t)
	assert.NilError(t, s.AddUser("grace", "hunter2", RoleAdmin, StatusActive))

	reopened, err := OpenWithCost(path, bcrypt.MinCost, nil)
	assert.NilError(t, err)
	assert.Check(t, reopened.Authenticate("grace", "hunter2"))
	assert.DeepEqual(t, reopened.Users(), []string{"grace"})
}

func TestLegacyUsersWithoutStatusAreActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	assert.NilError(t, err)
	legacy := `{"old": {"password": "` + string(hash) + `", "role": "user"}}`
	assert.NilError(t, os.WriteFile(path, []byte(legacy), 0600))

	s, err := OpenWithCost(path, bcrypt.MinCost, nil)
	assert.NilError(t, err)
	assert.Check(t, s.Authenticate("old", "pw"))
}

func TestRejectDeletesPending(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NilError(t, s.Register("frank", "secret"))

	assert.NilError(t, s.Reject("frank"))
	_, ok := s.Role("frank")
	assert.Check(t, !ok)

	err := s.Reject("frank")
	assert.Assert(t, errors.Is(err, ErrUserNotFound))
}

func TestChangePassword(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NilError(t, s.AddUser("grace", "old", RoleUser, StatusActive))

	err := s.ChangePassword("grace", "wrong", "new")
	assert.Assert(t, errors.Is(err, ErrInvalidCredentials))

	assert.NilError(t, s.ChangePassword("grace", "old", "new"))
	assert.Check(t, !s.Authenticate("grace", "old"))
	assert.Check(t, s.Authenticate("grace", "new"))
}

func TestChangeRole(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NilError(t, s.AddUser("grace", "pw", RoleUser, StatusActive))

	err := s.ChangeRole("grace", Role("owner"))
	assert.Assert(t, errors.Is(err, ErrInvalidRole))

	assert.NilError(t, s.ChangeRole("grace", RoleAdmin))
	role, _ := s.Role("grace")
	assert.Equal(t, role, RoleAdmin)

	err = s.ChangeRole("nobody", RoleAdmin)
	assert.Assert(t, errors.Is(err, ErrUserNotFound))
}

func TestLookupHidesHash(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NilError(t, s.AddUser("grace", "pw", RoleUser, StatusActive))

	u, ok := s.Lookup("grace")
	assert.Assert(t, ok)
	assert.Equal(t, u.Password, "")
	assert.Equal(t, u.Status, StatusActive)
}
