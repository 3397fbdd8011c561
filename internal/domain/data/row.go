package data

import (
	"encoding/json"
	"slices"
)

// Row represents a single table row.
// Values are positional and aligned to the table's field order.
type Row struct {
	Values []string
}

// NewRow creates a new Row holding a copy of values
func NewRow(values ...string) Row {
	return Row{Values: slices.Clone(values)}
}

// Copy creates a deep copy of the row to prevent mutation
func (r Row) Copy() Row {
	return NewRow(r.Values...)
}

// Len returns the number of values in the row
func (r Row) Len() int {
	return len(r.Values)
}

// Get returns the value at position i, or "" when i is out of bounds
func (r Row) Get(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

// Equal reports whether both rows hold the same values in the same order
func (r Row) Equal(other Row) bool {
	return slices.Equal(r.Values, other.Values)
}

// MarshalJSON encodes the row as a plain JSON array of strings
func (r Row) MarshalJSON() ([]byte, error) {
	if r.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Values)
}

// UnmarshalJSON decodes a JSON array of strings into the row
func (r *Row) UnmarshalJSON(b []byte) error {
	var values []string
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	r.Values = values
	return nil
}

// CopyRows deep-copies a row sequence
func CopyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Copy()
	}
	return out
}

// EqualRows reports whether two row sequences are identical
func EqualRows(a, b []Row) bool {
	return slices.EqualFunc(a, b, Row.Equal)
}
