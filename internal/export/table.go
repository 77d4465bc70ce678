// Package export turns observations into rows and columns and reads and writes them as CSV.
package export

import (
	"sort"

	"github.com/ambientwx/ambientwx/internal/weather"
)

// Table is a rectangular view of observations. Rows[i][j] holds the value of
// Columns[j] for observation i, or nil when the observation lacks that field.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// Column returns every cell of the named column, or false if the column is absent.
func (t *Table) Column(name string) ([]any, bool) {
	idx := -1
	for j, c := range t.Columns {
		if c == name {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	cells := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = row[idx]
	}
	return cells, true
}

// ToTable builds a table with one row per observation and one column per
// field name seen in any observation. Quantities contribute their magnitude.
// Columns are sorted by name. An empty input gives an empty table.
func ToTable(observations []*weather.Observation) *Table {
	table := &Table{Columns: []string{}, Rows: [][]any{}}
	if len(observations) == 0 {
		return table
	}

	seen := make(map[string]struct{})
	values := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		v := obs.Values()
		for name := range v {
			seen[name] = struct{}{}
		}
		values = append(values, v)
	}

	for name := range seen {
		table.Columns = append(table.Columns, name)
	}
	sort.Strings(table.Columns)

	for _, v := range values {
		row := make([]any, len(table.Columns))
		for j, name := range table.Columns {
			if cell, ok := v[name]; ok {
				row[j] = cell
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}
