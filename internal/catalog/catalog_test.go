package catalog

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	domainerrors "github.com/leengari/automanager/internal/domain/errors"
	"github.com/leengari/automanager/internal/storage/csvfile"
	"github.com/leengari/automanager/internal/storage/metadata"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func openTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	return c, dir
}

func TestOpenCreatesEmptyDocument(t *testing.T) {
	c, dir := openTestCatalog(t)

	assert.Check(t, is.Len(c.ListTables(), 0))
	_, err := os.Stat(filepath.Join(dir, metadata.FileName))
	assert.NilError(t, err)
}

func TestCreateTable(t *testing.T) {
	c, dir := openTestCatalog(t)

	path, err := c.CreateTable("orders", []string{"id", "customer"})
	assert.NilError(t, err)
	assert.Equal(t, path, filepath.Join(dir, "orders.csv"))

	header, rows, err := csvfile.Read(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, header, []string{"id", "customer"})
	assert.Check(t, is.Len(rows, 0))

	assert.DeepEqual(t, c.ListTables(), []string{"orders"})
	assert.DeepEqual(t, c.Fields("orders"), []string{"id", "customer"})
}

func TestCreateTableValidation(t *testing.T) {
	tests := []struct {
		name   string
		table  string
		fields []string
		want   error
	}{
		{"no fields", "orders", nil, domainerrors.ErrInvalidFields},
		{"blank field", "orders", []string{"id", " "}, domainerrors.ErrInvalidFields},
		{"duplicate field", "orders", []string{"id", "id", "name"}, domainerrors.ErrDuplicateField},
		{"blank name", "", []string{"id"}, domainerrors.ErrInvalidTableName},
		{"path in name", "../orders", []string{"id"}, domainerrors.ErrInvalidTableName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, dir := openTestCatalog(t)

			_, err := c.CreateTable(tt.table, tt.fields)
			assert.Assert(t, errors.Is(err, tt.want), "got %v", err)

			assert.Check(t, is.Len(c.ListTables(), 0))
			entries, err := os.ReadDir(dir)
			assert.NilError(t, err)
			assert.Equal(t, len(entries), 1, "only the metadata document should exist")
		})
	}
}

func TestDuplicateFieldLeavesNoTrace(t *testing.T) {
	c, dir := openTestCatalog(t)

	_, err := c.CreateTable("orders", []string{"id", "id", "name"})
	var dupErr *domainerrors.DuplicateFieldError
	assert.Assert(t, errors.As(err, &dupErr))
	assert.Equal(t, dupErr.FieldName, "id")

	_, ok := c.Lookup("orders")
	assert.Check(t, !ok)
	_, err = os.Stat(filepath.Join(dir, "orders.csv"))
	assert.Check(t, os.IsNotExist(err))
}

func TestCreateDuplicateTable(t *testing.T) {
	c, _ := openTestCatalog(t)

	_, err := c.CreateTable("orders", []string{"id"})
	assert.NilError(t, err)

	_, err = c.CreateTable("orders", []string{"other"})
	assert.Assert(t, errors.Is(err, domainerrors.ErrDuplicateTable))
	assert.DeepEqual(t, c.Fields("orders"), []string{"id"})
}

func TestFieldsUnknownTableIsQuietMiss(t *testing.T) {
	c, _ := openTestCatalog(t)

	fields := c.Fields("missing")
	assert.Assert(t, fields != nil)
	assert.Check(t, is.Len(fields, 0))
}

func TestFieldsReturnsCopy(t *testing.T) {
	c, _ := openTestCatalog(t)
	_, err := c.CreateTable("orders", []string{"id", "customer"})
	assert.NilError(t, err)

	fields := c.Fields("orders")
	fields[0] = "mutated"
	assert.DeepEqual(t, c.Fields("orders"), []string{"id", "customer"})
}

func TestReopenRoundTrip(t *testing.T) {
	c, dir := openTestCatalog(t)
	_, err := c.CreateTable("orders", []string{"id", "customer"})
	assert.NilError(t, err)
	_, err = c.CreateTable("jobs", []string{"id", "task"})
	assert.NilError(t, err)

	reopened, err := Open(dir, nil)
	assert.NilError(t, err)
	assert.DeepEqual(t, reopened.ListTables(), []string{"jobs", "orders"})

	for _, name := range c.ListTables() {
		want, _ := c.Lookup(name)
		got, ok := reopened.Lookup(name)
		assert.Assert(t, ok)
		assert.DeepEqual(t, got, want)
	}
}

func TestOpenLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"orders": ["id", "customer"]}`
	assert.NilError(t, os.WriteFile(filepath.Join(dir, metadata.FileName), []byte(legacy), 0644))

	c, err := Open(dir, nil)
	assert.NilError(t, err)

	path, err := c.Path("orders")
	assert.NilError(t, err)
	assert.Equal(t, path, filepath.Join(dir, "orders.csv"))
	assert.DeepEqual(t, c.Fields("orders"), []string{"id", "customer"})
}

func TestOpenRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"null entry", `{"orders": null}`, domainerrors.ErrInvalidFields},
		{"empty object", `{"orders": {}}`, domainerrors.ErrInvalidFields},
		{"empty legacy list", `{"orders": []}`, domainerrors.ErrInvalidFields},
		{"blank field", `{"orders": {"fields": ["id", ""]}}`, domainerrors.ErrInvalidFields},
		{"duplicate field", `{"orders": ["id", "id"]}`, domainerrors.ErrDuplicateField},
		{"bad name", `{"../orders": ["id"]}`, domainerrors.ErrInvalidTableName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			assert.NilError(t, os.WriteFile(filepath.Join(dir, metadata.FileName), []byte(tt.doc), 0644))

			_, err := Open(dir, nil)
			assert.Assert(t, errors.Is(err, tt.want), "got %v", err)
			assert.ErrorContains(t, err, "orders")
		})
	}
}

func TestRenameTable(t *testing.T) {
	c, dir := openTestCatalog(t)
	_, err := c.CreateTable("orders", []string{"id", "customer"})
	assert.NilError(t, err)

	assert.NilError(t, c.RenameTable("orders", "jobs"))

	assert.DeepEqual(t, c.ListTables(), []string{"jobs"})
	assert.DeepEqual(t, c.Fields("jobs"), []string{"id", "customer"})

	path, err := c.Path("jobs")
	assert.NilError(t, err)
	assert.Equal(t, path, filepath.Join(dir, "jobs.csv"))
	_, err = os.Stat(path)
	assert.NilError(t, err)
	_, err = os.Stat(filepath.Join(dir, "orders.csv"))
	assert.Check(t, os.IsNotExist(err))

	_, err = c.Path("orders")
	assert.Assert(t, errors.Is(err, domainerrors.ErrTableNotFound))

	reopened, err := Open(dir, nil)
	assert.NilError(t, err)
	assert.DeepEqual(t, reopened.ListTables(), []string{"jobs"})
}

func TestRenameTableFailures(t *testing.T) {
	c, dir := openTestCatalog(t)
	_, err := c.CreateTable("orders", []string{"id"})
	assert.NilError(t, err)
	_, err = c.CreateTable("jobs", []string{"id"})
	assert.NilError(t, err)

	err = c.RenameTable("missing", "other")
	assert.Assert(t, errors.Is(err, domainerrors.ErrTableNotFound))

	err = c.RenameTable("orders", "jobs")
	assert.Assert(t, errors.Is(err, domainerrors.ErrDuplicateTable))

	// a stray file occupying the target path also blocks the rename
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "stray.csv"), []byte("x\n"), 0644))
	err = c.RenameTable("orders", "stray")
	assert.Assert(t, errors.Is(err, domainerrors.ErrDuplicateTable))

	assert.NilError(t, os.Remove(filepath.Join(dir, "orders.csv")))
	err = c.RenameTable("orders", "fresh")
	assert.Assert(t, errors.Is(err, domainerrors.ErrBackingFileMissing))
	assert.DeepEqual(t, c.ListTables(), []string{"jobs", "orders"})
}

func TestDeleteTable(t *testing.T) {
	c, dir := openTestCatalog(t)
	_, err := c.CreateTable("orders", []string{"id"})
	assert.NilError(t, err)

	assert.NilError(t, c.DeleteTable("orders"))
	assert.Check(t, is.Len(c.ListTables(), 0))
	_, err = os.Stat(filepath.Join(dir, "orders.csv"))
	assert.Check(t, os.IsNotExist(err))

	err = c.DeleteTable("orders")
	assert.Assert(t, errors.Is(err, domainerrors.ErrTableNotFound))
}

func TestDeleteTableMissingFile(t *testing.T) {
	c, dir := openTestCatalog(t)
	_, err := c.CreateTable("orders", []string{"id"})
	assert.NilError(t, err)
	assert.NilError(t, os.Remove(filepath.Join(dir, "orders.csv")))

	err = c.DeleteTable("orders")
	assert.Assert(t, errors.Is(err, domainerrors.ErrBackingFileMissing))
	assert.DeepEqual(t, c.ListTables(), []string{"orders"})
}

func TestDeleteTableWarnsWhenCatalogSaveFails(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	c, err := Open(dir, slog.New(slog.NewTextHandler(&buf, nil)))
	assert.NilError(t, err)
	_, err = c.CreateTable("orders", []string{"id"})
	assert.NilError(t, err)

	// a directory in place of the document makes the final rename fail
	metaPath := filepath.Join(dir, metadata.FileName)
	assert.NilError(t, os.Remove(metaPath))
	assert.NilError(t, os.Mkdir(metaPath, 0755))
	assert.NilError(t, os.WriteFile(filepath.Join(metaPath, "keep"), nil, 0644))

	err = c.DeleteTable("orders")
	assert.Assert(t, err != nil)

	_, err = os.Stat(filepath.Join(dir, "orders.csv"))
	assert.Check(t, os.IsNotExist(err))
	assert.Check(t, is.Contains(buf.String(), "level=WARN"))
	assert.Check(t, is.Contains(buf.String(), "catalog entry still on disk"))
	assert.Check(t, is.Contains(buf.String(), "table=orders"))
}
