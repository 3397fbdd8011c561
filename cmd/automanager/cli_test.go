package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/leengari/automanager/internal/auth"
	"github.com/leengari/automanager/internal/catalog"
	"github.com/leengari/automanager/internal/config"
	"github.com/leengari/automanager/internal/domain/data"
	"github.com/leengari/automanager/internal/store"
)

func setupCLI(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	cfg = config.DefaultConfig()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.UsersFile = filepath.Join(root, "users.json")
	cfg.Backup.Dir = filepath.Join(root, "backups")
	logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	userRole = string(auth.RoleUser)
	userPending = false
}

func newCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	return cmd, &out
}

func TestUserCommands(t *testing.T) {
	setupCLI(t)

	cmd, out := newCmd()
	userRole = string(auth.RoleAdmin)
	assert.NilError(t, userAddCmd.RunE(cmd, []string{"boss", "pw"}))
	assert.Check(t, is.Contains(out.String(), "User boss added (admin)"))

	users, err := auth.Open(cfg.UsersFile, nil)
	assert.NilError(t, err)
	assert.NilError(t, users.Register("newbie", "pw"))
	assert.NilError(t, users.Register("spammer", "pw"))

	cmd, out = newCmd()
	userPending = true
	assert.NilError(t, userListCmd.RunE(cmd, nil))
	assert.Check(t, is.Contains(out.String(), "newbie"))
	assert.Check(t, !strings.Contains(out.String(), "boss"))
	userPending = false

	cmd, _ = newCmd()
	assert.NilError(t, userApproveCmd.RunE(cmd, []string{"newbie"}))
	assert.NilError(t, userRejectCmd.RunE(cmd, []string{"spammer"}))
	assert.NilError(t, userRoleCmd.RunE(cmd, []string{"newbie", "admin"}))

	cmd, out = newCmd()
	assert.NilError(t, userListCmd.RunE(cmd, nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, len(lines), 3)
	assert.DeepEqual(t, strings.Fields(lines[2]), []string{"newbie", "admin", "active"})

	cmd, _ = newCmd()
	err = userRoleCmd.RunE(cmd, []string{"newbie", "root"})
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	assert.NilError(t, userPasswdCmd.RunE(cmd, []string{"newbie", "pw", "better"}))
	assert.NilError(t, userDeleteCmd.RunE(cmd, []string{"boss"}))

	users, err = auth.Open(cfg.UsersFile, nil)
	assert.NilError(t, err)
	assert.Check(t, users.Authenticate("newbie", "better"))
	assert.DeepEqual(t, users.Users(), []string{"newbie"})
}

func TestBackupCommand(t *testing.T) {
	setupCLI(t)

	cat, err := catalog.Open(cfg.DataDir, nil)
	assert.NilError(t, err)
	_, err = cat.CreateTable("orders", []string{"id"})
	assert.NilError(t, err)
	assert.NilError(t, store.New(cat).AppendRow("orders", data.NewRow("1")))

	cmd, out := newCmd()
	assert.NilError(t, runBackup(cmd, nil))
	assert.Check(t, is.Contains(out.String(), filepath.Join(cfg.DataDir, "orders.csv")+" -> "))

	entries, err := os.ReadDir(cfg.Backup.Dir)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 1)
	archive := filepath.Join(cfg.Backup.Dir, entries[0].Name())

	assert.NilError(t, store.New(cat).AppendRow("orders", data.NewRow("2")))

	cmd, out = newCmd()
	assert.NilError(t, runRestore(cmd, []string{archive, "orders"}))
	assert.Check(t, is.Contains(out.String(), "orders restored from"))

	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, "orders.csv"))
	assert.NilError(t, err)
	assert.Equal(t, string(raw), "id\n1\n")

	cmd, _ = newCmd()
	err = runBackup(cmd, []string{"missing"})
	assert.ErrorContains(t, err, "not found")
}

func TestShellCommand(t *testing.T) {
	setupCLI(t)

	cmd, out := newCmd()
	cmd.SetIn(strings.NewReader("help\nexit\n"))
	assert.NilError(t, runShell(cmd, nil))
	assert.Check(t, is.Contains(out.String(), "Welcome to AutoManager"))
	assert.Check(t, is.Contains(out.String(), "login <user> <password>"))
}
