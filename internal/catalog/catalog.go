package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	domainerrors "github.com/leengari/automanager/internal/domain/errors"
	"github.com/leengari/automanager/internal/domain/schema"
	"github.com/leengari/automanager/internal/storage/csvfile"
	"github.com/leengari/automanager/internal/storage/metadata"
)

// Catalog maps table names to their schemas and backing files.
// It is the only authority on which tables exist.
// A Catalog is not safe for concurrent use.
type Catalog struct {
	dataDir  string
	metaPath string
	tables   map[string]*schema.TableSchema
	logger   *slog.Logger
}

// Open loads the catalog kept in dataDir, creating the directory and an
// empty metadata document when they do not exist yet.
func Open(dataDir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	c := &Catalog{
		dataDir:  dataDir,
		metaPath: filepath.Join(dataDir, metadata.FileName),
		tables:   make(map[string]*schema.TableSchema),
		logger:   logger,
	}

	doc, found, err := metadata.Load(c.metaPath)
	if err != nil {
		return nil, err
	}

	for name, meta := range doc {
		if err := schema.ValidateName(name); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %q in %s: %w", name, c.metaPath, err)
		}
		if err := schema.ValidateFields(name, meta.Fields); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %q in %s: %w", name, c.metaPath, err)
		}
		path := meta.FilePath
		if path == "" {
			path = schema.PathFor(dataDir, name)
		}
		c.tables[name] = &schema.TableSchema{
			Name:     name,
			Fields:   slices.Clone(meta.Fields),
			FilePath: path,
		}
	}

	if !found {
		if err := c.Save(); err != nil {
			return nil, err
		}
	}

	logger.Info("catalog loaded",
		slog.String("path", c.metaPath),
		slog.Int("table_count", len(c.tables)),
	)

	return c, nil
}

// DataDir returns the directory holding the table files
func (c *Catalog) DataDir() string {
	return c.dataDir
}

// CreateTable registers a new table and writes its header-only backing file.
// All validation happens before anything touches the disk.
func (c *Catalog) CreateTable(name string, fields []string) (string, error) {
	if err := schema.ValidateName(name); err != nil {
		return "", err
	}
	if _, exists := c.tables[name]; exists {
		return "", &domainerrors.DuplicateTableError{TableName: name}
	}
	if err := schema.ValidateFields(name, fields); err != nil {
		return "", err
	}

	path := schema.PathFor(c.dataDir, name)
	if exists, err := csvfile.Exists(path); err != nil {
		return "", err
	} else if exists {
		c.logger.Warn("overwriting orphan table file",
			slog.String("table", name),
			slog.String("path", path),
		)
	}

	if err := csvfile.Create(path, fields); err != nil {
		return "", fmt.Errorf("failed to create table %s: %w", name, err)
	}

	c.tables[name] = &schema.TableSchema{
		Name:     name,
		Fields:   slices.Clone(fields),
		FilePath: path,
	}

	if err := c.Save(); err != nil {
		delete(c.tables, name)
		os.Remove(path)
		return "", err
	}

	c.logger.Info("table created",
		slog.String("table", name),
		slog.Any("fields", fields),
		slog.String("path", path),
	)

	return path, nil
}

// ListTables returns every registered table name, sorted
func (c *Catalog) ListTables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns the ordered field names of a table.
// Unknown tables yield an empty slice rather than an error.
func (c *Catalog) Fields(name string) []string {
	t, ok := c.tables[name]
	if !ok {
		return []string{}
	}
	return slices.Clone(t.Fields)
}

// Lookup returns a copy of a table's schema
func (c *Catalog) Lookup(name string) (schema.TableSchema, bool) {
	t, ok := c.tables[name]
	if !ok {
		return schema.TableSchema{}, false
	}
	return t.Copy(), true
}

// Path returns the backing file location of a table
func (c *Catalog) Path(name string) (string, error) {
	t, ok := c.tables[name]
	if !ok {
		return "", &domainerrors.TableNotFoundError{TableName: name}
	}
	return t.FilePath, nil
}

// RenameTable moves the backing file and re-keys the entry.
// If the catalog cannot be persisted afterwards the rename is undone, so the
// catalog never points at a file that is not there.
func (c *Catalog) RenameTable(oldName, newName string) error {
	t, ok := c.tables[oldName]
	if !ok {
		return &domainerrors.TableNotFoundError{TableName: oldName}
	}
	if err := schema.ValidateName(newName); err != nil {
		return err
	}
	if _, exists := c.tables[newName]; exists {
		return &domainerrors.DuplicateTableError{TableName: newName}
	}

	oldPath := t.FilePath
	if err := c.requireFile(oldName, oldPath); err != nil {
		return err
	}

	newPath := schema.PathFor(c.dataDir, newName)
	if exists, err := csvfile.Exists(newPath); err != nil {
		return err
	} else if exists {
		return &domainerrors.DuplicateTableError{TableName: newName}
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename table file %s: %w", oldName, err)
	}

	delete(c.tables, oldName)
	c.tables[newName] = &schema.TableSchema{
		Name:     newName,
		Fields:   t.Fields,
		FilePath: newPath,
	}

	if err := c.Save(); err != nil {
		delete(c.tables, newName)
		c.tables[oldName] = t
		if rbErr := os.Rename(newPath, oldPath); rbErr != nil {
			c.logger.Error("failed to roll back table rename",
				slog.String("from", newPath),
				slog.String("to", oldPath),
				slog.Any("error", rbErr),
			)
		}
		return err
	}

	c.logger.Info("table renamed",
		slog.String("from", oldName),
		slog.String("to", newName),
	)

	return nil
}

// DeleteTable removes the backing file, then the entry.
// A missing file is a failure; the entry is left in place.
func (c *Catalog) DeleteTable(name string) error {
	t, ok := c.tables[name]
	if !ok {
		return &domainerrors.TableNotFoundError{TableName: name}
	}
	if err := c.requireFile(name, t.FilePath); err != nil {
		return err
	}

	if err := os.Remove(t.FilePath); err != nil {
		return fmt.Errorf("failed to remove table file %s: %w", name, err)
	}

	delete(c.tables, name)
	if err := c.Save(); err != nil {
		c.logger.Warn("table file removed but catalog entry still on disk",
			slog.String("table", name),
			slog.String("path", t.FilePath),
			slog.String("catalog", c.metaPath),
		)
		return err
	}

	c.logger.Info("table deleted", slog.String("table", name))
	return nil
}

// Save persists the whole catalog document
func (c *Catalog) Save() error {
	doc := make(metadata.Document, len(c.tables))
	for name, t := range c.tables {
		doc[name] = metadata.TableMeta{
			Fields:   slices.Clone(t.Fields),
			FilePath: t.FilePath,
		}
	}

	if err := metadata.Save(c.metaPath, doc); err != nil {
		c.logger.Error("failed to save catalog",
			slog.String("path", c.metaPath),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func (c *Catalog) requireFile(name, path string) error {
	exists, err := csvfile.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return &domainerrors.BackingFileMissingError{TableName: name, Path: path}
	}
	return nil
}
