// Package table is the in-memory tabular model shared by ingestion, normalization
// and export: ordered named columns of tagged cell values.
package table

import (
	"encoding/json"
	"fmt"
)

// Column is a named sequence of cells.
type Column struct {
	Name   string
	Values []Value
}

// Table is an ordered set of equally long, uniquely named columns.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// FromRecords builds a string table from a header and rows. Empty cells become
// null. Every row must have exactly len(header) cells.
func FromRecords(header []string, rows [][]string) (*Table, error) {
	t := New()
	for c, name := range header {
		values := make([]Value, len(rows))
		for r, row := range rows {
			if len(row) != len(header) {
				return nil, fmt.Errorf("FromRecords: row %d has %d cells, want %d", r+1, len(row), len(header))
			}
			if row[c] == "" {
				values[r] = Null()
			} else {
				values[r] = String(row[c])
			}
		}
		if err := t.AddColumn(name, values); err != nil {
			return nil, fmt.Errorf("FromRecords: %w", err)
		}
	}
	return t, nil
}

// AddColumn appends a column. The first column fixes the row count.
func (t *Table) AddColumn(name string, values []Value) error {
	if _, dup := t.index[name]; dup {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(t.columns) > 0 && len(values) != t.rows {
		return fmt.Errorf("column %q has %d rows, want %d", name, len(values), t.rows)
	}
	if len(t.columns) == 0 {
		t.rows = len(values)
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, Column{Name: name, Values: values})
	return nil
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the table has a column named name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Columns returns the columns in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for c, col := range t.columns {
		row[c] = col.Values[i]
	}
	return row
}

// Head returns a table with at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	out := New()
	for _, col := range t.columns {
		values := make([]Value, n)
		copy(values, col.Values[:n])
		// Names are unique in t, so AddColumn cannot fail.
		_ = out.AddColumn(col.Name, values)
	}
	return out
}

// Records renders every row as strings, null cells as "".
func (t *Table) Records() [][]string {
	out := make([][]string, t.rows)
	for r := 0; r < t.rows; r++ {
		rec := make([]string, len(t.columns))
		for c, col := range t.columns {
			rec[c] = col.Values[r].String()
		}
		out[r] = rec
	}
	return out
}

// Equal reports whether both tables have the same columns, in the same order,
// holding equal cells.
func (t *Table) Equal(o *Table) bool {
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for c := range t.columns {
		a, b := t.columns[c], o.columns[c]
		if a.Name != b.Name {
			return false
		}
		for r := range a.Values {
			if !a.Values[r].Equal(b.Values[r]) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON renders {"columns": [...], "rows": [[...], ...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]Value, t.rows)
	for r := range rows {
		rows[r] = t.Row(r)
	}
	return json.Marshal(struct {
		Columns []string  `json:"columns"`
		Rows    [][]Value `json:"rows"`
	}{
		Columns: t.ColumnNames(),
		Rows:    rows,
	})
}
