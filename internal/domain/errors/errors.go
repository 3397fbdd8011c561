package errors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. Every typed error below matches exactly one.
var (
	ErrDuplicateTable     = errors.New("duplicate table")
	ErrDuplicateField     = errors.New("duplicate field")
	ErrInvalidFields      = errors.New("empty or invalid fields")
	ErrInvalidTableName   = errors.New("invalid table name")
	ErrTableNotFound      = errors.New("table not found")
	ErrIndexOutOfRange    = errors.New("row index out of range")
	ErrBackingFileMissing = errors.New("backing file missing")
	ErrRowWidth           = errors.New("row width does not match schema")
	ErrSchemaMismatch     = errors.New("file header does not match schema")
)

// DuplicateTableError is returned when a table name is already registered
type DuplicateTableError struct {
	TableName string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("table '%s' already exists", e.TableName)
}

func (e *DuplicateTableError) Is(target error) bool { return target == ErrDuplicateTable }

// DuplicateFieldError is returned when a field list repeats a name
type DuplicateFieldError struct {
	TableName string
	FieldName string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field '%s' appears more than once in table '%s'", e.FieldName, e.TableName)
}

func (e *DuplicateFieldError) Is(target error) bool { return target == ErrDuplicateField }

// InvalidFieldsError covers an empty field list or a blank field name
type InvalidFieldsError struct {
	TableName string
	Reason    string
}

func (e *InvalidFieldsError) Error() string {
	return fmt.Sprintf("invalid fields for table '%s': %s", e.TableName, e.Reason)
}

func (e *InvalidFieldsError) Is(target error) bool { return target == ErrInvalidFields }

// InvalidTableNameError is returned for names that cannot be mapped to a file
type InvalidTableNameError struct {
	TableName string
	Reason    string
}

func (e *InvalidTableNameError) Error() string {
	return fmt.Sprintf("invalid table name '%s': %s", e.TableName, e.Reason)
}

func (e *InvalidTableNameError) Is(target error) bool { return target == ErrInvalidTableName }

// TableNotFoundError is returned when the catalog has no entry for a name
type TableNotFoundError struct {
	TableName string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table '%s' not found", e.TableName)
}

func (e *TableNotFoundError) Is(target error) bool { return target == ErrTableNotFound }

// IndexOutOfRangeError is returned when a row position is outside [0, RowCount)
type IndexOutOfRangeError struct {
	TableName string
	Index     int
	RowCount  int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("row %d out of range for table '%s' (%d rows)", e.Index, e.TableName, e.RowCount)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// BackingFileMissingError signals drift: the catalog has the table but the file is gone
type BackingFileMissingError struct {
	TableName string
	Path      string
}

func (e *BackingFileMissingError) Error() string {
	return fmt.Sprintf("backing file for table '%s' is missing: %s", e.TableName, e.Path)
}

func (e *BackingFileMissingError) Is(target error) bool { return target == ErrBackingFileMissing }

// RowWidthError is returned when a row does not carry one value per field
type RowWidthError struct {
	TableName string
	Expected  int
	Got       int
}

func (e *RowWidthError) Error() string {
	return fmt.Sprintf("table '%s' expects %d values per row, got %d", e.TableName, e.Expected, e.Got)
}

func (e *RowWidthError) Is(target error) bool { return target == ErrRowWidth }

// SchemaMismatchError is returned when a backing file header disagrees with the catalog
type SchemaMismatchError struct {
	TableName string
	Expected  []string
	Found     []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("table '%s' header mismatch: expected %v, found %v", e.TableName, e.Expected, e.Found)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }
