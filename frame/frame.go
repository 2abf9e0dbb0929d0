// Package frame holds the tabular batch model used to move record sets
// in and out of the document store.
package frame

import (
	"errors"
	"fmt"
	"slices"
)

// Record is a single document as a mapping from field name to value.
type Record map[string]any

// Frame is an ordered batch of Records sharing a uniform field set.
type Frame struct {
	columns []string
	rows    []Record
}

var errNoColumns = errors.New("a frame requires at least one column")
var errMissingColumn = errors.New("record is missing a frame column")
var errMissingKeyColumn = errors.New("key column is not present in every record")

// MissingColumnError wraps errMissingColumn with the offending column name.
func MissingColumnError(column string) error {
	return fmt.Errorf("%w, %s", errMissingColumn, column)
}

// MissingKeyColumnError wraps errMissingKeyColumn with the key column name.
func MissingKeyColumnError(column string) error {
	return fmt.Errorf("%w, %s", errMissingKeyColumn, column)
}

// New creates an empty Frame with the given column set.
func New(columns []string) (*Frame, error) {
	if len(columns) == 0 {
		return nil, errNoColumns
	}

	return &Frame{columns: slices.Clone(columns)}, nil
}

// FromRecords creates a Frame from the given columns and rows. Every row
// must carry a value for every column.
func FromRecords(columns []string, rows []Record) (*Frame, error) {
	f, err := New(columns)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := f.Append(row); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// Append adds a record to the frame after checking it covers the column set.
func (f *Frame) Append(row Record) error {
	for _, col := range f.columns {
		if _, ok := row[col]; !ok {
			return MissingColumnError(col)
		}
	}

	f.rows = append(f.rows, row)
	return nil
}

// Columns returns a copy of the frame's column names in order.
func (f *Frame) Columns() []string {
	return slices.Clone(f.columns)
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	return slices.Contains(f.columns, name)
}

// Len returns the number of records in the frame.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Records returns the frame's records in order.
func (f *Frame) Records() []Record {
	return f.rows
}

// KeyValues returns the value of the key column for every record, in order.
// It fails if any record lacks the key column.
func (f *Frame) KeyValues(keyColumn string) ([]any, error) {
	if !f.HasColumn(keyColumn) {
		return nil, MissingKeyColumnError(keyColumn)
	}

	keys := make([]any, 0, len(f.rows))
	for _, row := range f.rows {
		key, ok := row[keyColumn]
		if !ok {
			return nil, MissingKeyColumnError(keyColumn)
		}
		keys = append(keys, key)
	}

	return keys, nil
}
