package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leengari/automanager/internal/domain/data"
)

// Exists reports whether a regular file is present at path
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// Read parses a table file into its header and rows.
// Quoted values keep their bytes as written, line breaks included.
// A missing file is reported with an error wrapping os.ErrNotExist.
// An empty file yields a nil header and no rows.
func Read(path string) ([]string, []data.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open table file: %w", err)
	}
	defer f.Close()

	d := newDecoder(f)

	header, err := d.read()
	if err == io.EOF {
		return nil, []data.Row{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	rows := []data.Row{}
	for {
		record, err := d.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		// every record must match the header width
		if len(record) != len(header) {
			err := &csv.ParseError{StartLine: d.startLine, Line: d.startLine, Column: 1, Err: csv.ErrFieldCount}
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		rows = append(rows, data.Row{Values: record})
	}

	return header, rows, nil
}

// Create writes a header-only table file, replacing anything at path
func Create(path string, fields []string) error {
	return Write(path, fields, nil)
}

// Write persists the header and all rows using temp file + atomic rename,
// so readers never observe a half-written table.
func Write(path string, fields []string, rows []data.Row) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	// Remove the temp file on any failure path
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := writeRecord(bw, fields); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	for i, row := range rows {
		if err := writeRecord(bw, row.Values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i, path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}

	// Atomic replace
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp → %s: %w", path, err)
	}
	committed = true

	slog.Debug("table file written",
		slog.String("path", path),
		slog.Int("row_count", len(rows)),
	)
	return nil
}

// writeRecord encodes one CSV line.
// encoding/csv writes a lone empty field as a blank line, which readers skip,
// so that case is quoted by hand.
func writeRecord(w *bufio.Writer, record []string) error {
	if len(record) == 1 && record[0] == "" {
		_, err := w.WriteString("\"\"\n")
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(record); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
