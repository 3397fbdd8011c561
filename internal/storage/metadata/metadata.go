package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the catalog document kept at the root of the data directory
const FileName = "metadata.json"

// TableMeta is the persisted form of one catalog entry
type TableMeta struct {
	Fields   []string `json:"fields"`
	FilePath string   `json:"file_path"`
}

// Document maps table name to its entry
type Document map[string]TableMeta

// Load reads the catalog document at path.
// A missing file yields an empty document and found=false.
// Entries in the legacy shape (a bare list of field names) are upgraded
// with FilePath left empty; the caller derives it.
func Load(path string) (doc Document, found bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read catalog meta: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, true, fmt.Errorf("failed to parse catalog meta: %w", err)
	}

	doc = make(Document, len(entries))
	for name, entry := range entries {
		var meta TableMeta
		if err := json.Unmarshal(entry, &meta); err == nil {
			doc[name] = meta
			continue
		}

		var legacy []string
		if err := json.Unmarshal(entry, &legacy); err != nil {
			return nil, true, fmt.Errorf("failed to parse catalog entry %s: %w", name, err)
		}
		doc[name] = TableMeta{Fields: legacy}
	}

	return doc, true, nil
}

// Save writes the document atomically (temp + rename)
func Save(path string, doc Document) error {
	if doc == nil {
		doc = Document{}
	}

	metaBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog meta: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, metaBytes, 0644); err != nil {
		return fmt.Errorf("failed to write temp catalog meta: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp → %s: %w", FileName, err)
	}

	return nil
}
