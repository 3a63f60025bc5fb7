package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Record is one row of a table, keyed by column name. Reading a column the
// record does not carry yields a missing Value.
type Record map[string]Value

// Get returns the value stored under column, or missing.
func (r Record) Get(column string) Value {
	return r[column]
}

// Clone returns a shallow copy of the record. Values are immutable scalars,
// so this is a full copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered sequence of records sharing one schema.
//
// Columns fixes the column order used by every exporter and by projections.
// Transforms in this module never mutate a Table they receive; they return a
// new one built from a Clone.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) Table {
	return Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// HasColumn reports whether column is part of the schema.
func (t Table) HasColumn(column string) bool {
	return t.ColumnIndex(column) >= 0
}

// ColumnIndex returns the position of column, or -1.
func (t Table) ColumnIndex(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns the values of one column in row order.
func (t Table) Column(column string) []Value {
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Get(column)
	}
	return out
}

// Append adds a row built from values in column order. Extra values are an error.
func (t *Table) Append(values ...Value) error {
	if len(values) > len(t.Columns) {
		return fmt.Errorf("row has %d values for %d columns", len(values), len(t.Columns))
	}
	rec := make(Record, len(t.Columns))
	for i, v := range values {
		rec[t.Columns[i]] = v
	}
	t.Rows = append(t.Rows, rec)
	return nil
}

// Clone deep-copies the table.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Matrix returns the table as rows of cell strings in column order, the shape
// consumed by CSV and spreadsheet writers.
func (t Table) Matrix() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = r.Get(c).String()
		}
		out[i] = row
	}
	return out
}

// MarshalJSON writes rows as arrays in column order so the output is stable.
func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([][]Value, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]Value, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = r.Get(c)
		}
		rows[i] = row
	}
	columns := t.Columns
	if columns == nil {
		columns = []string{}
	}
	return json.Marshal(struct {
		Columns []string  `json:"columns"`
		Rows    [][]Value `json:"rows"`
	}{columns, rows})
}

// UnmarshalJSON accepts rows either as arrays in column order or as objects.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw struct {
		Columns []string          `json:"columns"`
		Rows    []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Table{Columns: raw.Columns, Rows: make([]Record, 0, len(raw.Rows))}
	for i, msg := range raw.Rows {
		var arr []Value
		if err := json.Unmarshal(msg, &arr); err == nil {
			if len(arr) > len(out.Columns) {
				return fmt.Errorf("row %d has %d values for %d columns", i, len(arr), len(out.Columns))
			}
			rec := make(Record, len(out.Columns))
			for j, v := range arr {
				rec[out.Columns[j]] = v
			}
			out.Rows = append(out.Rows, rec)
			continue
		}

		var obj map[string]Value
		if err := json.Unmarshal(msg, &obj); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := make(Record, len(obj))
		for _, k := range keys {
			if !out.HasColumn(k) {
				out.Columns = append(out.Columns, k)
			}
			rec[k] = obj[k]
		}
		out.Rows = append(out.Rows, rec)
	}
	*t = out
	return nil
}
