package domain

import "strings"

// ColumnKind classifies a column after inspecting all of its values.
type ColumnKind string

const (
	ColumnNumeric ColumnKind = "numeric"
	ColumnText    ColumnKind = "text"
	// ColumnEmpty holds only missing values.
	ColumnEmpty ColumnKind = "empty"
	// ColumnMixed holds both numbers and text, e.g. a code column with "NA" spelled out.
	ColumnMixed ColumnKind = "mixed"
)

// ColumnInfo describes one inspected column.
type ColumnInfo struct {
	Name    string     `json:"name" yaml:"name"`
	Kind    ColumnKind `json:"kind" yaml:"kind"`
	Missing int        `json:"missing" yaml:"missing"`
	Rows    int        `json:"rows" yaml:"rows"`
}

// Schema is the result of inspecting a table once. Pattern-based column
// selections are resolved against it into explicit name lists.
type Schema struct {
	Columns []ColumnInfo `json:"columns" yaml:"columns"`
}

// Lookup returns the info for column.
func (s Schema) Lookup(column string) (ColumnInfo, bool) {
	for _, c := range s.Columns {
		if c.Name == column {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// Names returns every column name in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnsWithPrefix returns, in schema order, the columns whose name starts with prefix.
func (s Schema) ColumnsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range s.Columns {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c.Name)
		}
	}
	return out
}

// ColumnsOfKind returns, in schema order, the columns of the given kind.
func (s Schema) ColumnsOfKind(kind ColumnKind) []string {
	var out []string
	for _, c := range s.Columns {
		if c.Kind == kind {
			out = append(out, c.Name)
		}
	}
	return out
}
