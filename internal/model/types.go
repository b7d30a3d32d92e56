// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// ColumnType declares the semantic type of a result column.
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnInteger
	ColumnFloat
	ColumnDate
)

// Column describes one result column.
type Column struct {
	Key   string
	Label string
	Type  ColumnType
}

// Row maps column keys to typed scalars (int64, float64, string or time.Time).
type Row map[string]any

// ResultSet is an ordered sequence of rows plus column metadata.
// Every row carries exactly the keys declared in Columns.
type ResultSet struct {
	Columns []Column
	Rows    []Row
}

// Column returns the metadata for a column key.
func (rs *ResultSet) Column(key string) (Column, bool) {
	for _, col := range rs.Columns {
		if col.Key == key {
			return col, true
		}
	}
	return Column{}, false
}

// DateRange is an inclusive, optionally open-ended date interval.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Validate rejects ranges where both bounds are set and from is after to.
// Invalid ranges are never silently swapped.
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return fmt.Errorf("invalid date range: from %s is after to %s",
			r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	}
	return nil
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// Filters holds the optional exact-match field filters. Empty means "all".
type Filters struct {
	Band    string
	Mode    string
	Country string
}

// SortState tracks the active sort column and direction for a table view.
type SortState struct {
	Column     string
	Descending bool
}

// Activate records a sort request on a column header. Repeated requests on
// the same column flip the direction; a different column resets to ascending.
func (s *SortState) Activate(column string) {
	if s.Column == column {
		s.Descending = !s.Descending
		return
	}
	s.Column = column
	s.Descending = false
}
