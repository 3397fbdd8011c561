package schema

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/leengari/automanager/internal/domain/data"
	"github.com/leengari/automanager/internal/domain/errors"
)

// FileExtension is appended to a table name to form its backing file name
const FileExtension = ".csv"

// TableSchema describes one table: its ordered fields and its backing file
type TableSchema struct {
	Name     string
	Fields   []string
	FilePath string
}

// Copy returns a schema whose Fields slice is independent of the receiver's
func (s TableSchema) Copy() TableSchema {
	s.Fields = slices.Clone(s.Fields)
	return s
}

// FieldIndex returns the position of field, or -1 if the table has no such field
func (s TableSchema) FieldIndex(field string) int {
	return slices.Index(s.Fields, field)
}

// ValidateRow checks that row carries exactly one value per field
func (s TableSchema) ValidateRow(row data.Row) error {
	if row.Len() != len(s.Fields) {
		return &errors.RowWidthError{
			TableName: s.Name,
			Expected:  len(s.Fields),
			Got:       row.Len(),
		}
	}
	return nil
}

// PathFor derives the backing file location for a table name
func PathFor(dataDir, name string) string {
	return filepath.Join(dataDir, name+FileExtension)
}

// ValidateName rejects names that cannot be mapped safely onto a file in the data directory
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &errors.InvalidTableNameError{TableName: name, Reason: "name is blank"}
	case strings.ContainsAny(name, `/\`):
		return &errors.InvalidTableNameError{TableName: name, Reason: "name contains a path separator"}
	case strings.Contains(name, ".."):
		return &errors.InvalidTableNameError{TableName: name, Reason: "name contains '..'"}
	}
	return nil
}

// ValidateFields checks a field list for emptiness, blank entries and duplicates.
// Blank entries are reported before duplicates.
func ValidateFields(table string, fields []string) error {
	if len(fields) == 0 {
		return &errors.InvalidFieldsError{TableName: table, Reason: "no fields given"}
	}

	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f) == "" {
			return &errors.InvalidFieldsError{
				TableName: table,
				Reason:    "field " + strconv.Itoa(i) + " is blank",
			}
		}
	}
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			return &errors.DuplicateFieldError{TableName: table, FieldName: f}
		}
		seen[f] = struct{}{}
	}
	return nil
}
