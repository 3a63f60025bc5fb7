package dataprocessing

import (
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// InspectSchema classifies every column of the table in one pass.
func InspectSchema(table domain.Table) domain.Schema {
	schema := domain.Schema{Columns: make([]domain.ColumnInfo, len(table.Columns))}

	for i, col := range table.Columns {
		var numbers, texts, missing int
		for _, row := range table.Rows {
			switch v := row.Get(col); {
			case v.IsMissing():
				missing++
			case v.IsNumber():
				numbers++
			default:
				texts++
			}
		}

		kind := domain.ColumnEmpty
		switch {
		case numbers > 0 && texts > 0:
			kind = domain.ColumnMixed
		case numbers > 0:
			kind = domain.ColumnNumeric
		case texts > 0:
			kind = domain.ColumnText
		}

		schema.Columns[i] = domain.ColumnInfo{
			Name:    col,
			Kind:    kind,
			Missing: missing,
			Rows:    len(table.Rows),
		}
	}
	return schema
}

// ResolveColumns expands explicit names and prefixes into one ordered,
// de-duplicated list of column names. Explicit names come first, in the
// order given, followed by prefix matches in schema order. Every explicit
// name must exist and every prefix must match at least one column.
func ResolveColumns(schema domain.Schema, names, prefixes []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	var out []string

	for _, name := range names {
		if _, ok := schema.Lookup(name); !ok {
			return nil, errors.NewMissingColumnError(name)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, prefix := range prefixes {
		matched := schema.ColumnsWithPrefix(prefix)
		if len(matched) == 0 {
			return nil, errors.NewMissingColumnError(prefix + "*")
		}
		for _, name := range matched {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out, nil
}

// requireColumns fails with MissingColumn on the first absent column.
func requireColumns(table domain.Table, columns ...string) error {
	for _, col := range columns {
		if !table.HasColumn(col) {
			return errors.NewMissingColumnError(col)
		}
	}
	return nil
}

// requireNumeric fails with TypeMismatch if any value in column is text.
func requireNumeric(table domain.Table, column string) error {
	for _, row := range table.Rows {
		if v := row.Get(column); v.IsText() {
			return errors.NewTypeMismatchError(column, "numeric", "text").
				WithContext("value", v.Str)
		}
	}
	return nil
}
