package dataprocessing

import (
	"fmt"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// MoveColumn returns a copy of table with column moved to position.
// Positions past the end move the column last.
func MoveColumn(table domain.Table, column string, position int) (domain.Table, error) {
	idx := table.ColumnIndex(column)
	if idx < 0 {
		return domain.Table{}, errors.NewMissingColumnError(column)
	}
	if position < 0 {
		return domain.Table{}, errors.NewAppValidationError(
			fmt.Sprintf("move %q: position %d is negative", column, position))
	}

	out := table.Clone()
	cols := append(out.Columns[:idx:idx], out.Columns[idx+1:]...)
	if position > len(cols) {
		position = len(cols)
	}

	reordered := make([]string, 0, len(out.Columns))
	reordered = append(reordered, cols[:position]...)
	reordered = append(reordered, column)
	reordered = append(reordered, cols[position:]...)
	out.Columns = reordered
	return out, nil
}

// SelectColumns projects table onto columns, in the given order. Values of
// dropped columns are removed from every row.
func SelectColumns(table domain.Table, columns []string) (domain.Table, error) {
	if len(columns) == 0 {
		return domain.Table{}, errors.NewAppValidationError("select: no columns given")
	}

	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if seen[col] {
			return domain.Table{}, errors.NewAppValidationError(fmt.Sprintf("select: column %q listed twice", col))
		}
		seen[col] = true
	}
	if err := requireColumns(table, columns...); err != nil {
		return domain.Table{}, err
	}

	out := domain.Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([]domain.Record, len(table.Rows)),
	}
	for i, row := range table.Rows {
		rec := make(domain.Record, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				rec[col] = v
			}
		}
		out.Rows[i] = rec
	}
	return out, nil
}

// FilterEquals keeps the rows whose value in column renders exactly as
// value. Missing cells never match.
func FilterEquals(table domain.Table, column, value string) (domain.Table, error) {
	if err := requireColumns(table, column); err != nil {
		return domain.Table{}, err
	}

	out := domain.Table{Columns: append([]string(nil), table.Columns...)}
	for _, row := range table.Rows {
		v := row.Get(column)
		if !v.IsMissing() && v.String() == value {
			out.Rows = append(out.Rows, row.Clone())
		}
	}
	return out, nil
}

// DropNonFinite removes rows holding ±Inf or NaN in any of columns. Missing
// and text cells are kept.
func DropNonFinite(table domain.Table, columns ...string) (domain.Table, error) {
	if err := requireColumns(table, columns...); err != nil {
		return domain.Table{}, err
	}

	out := domain.Table{Columns: append([]string(nil), table.Columns...)}
	for _, row := range table.Rows {
		keep := true
		for _, col := range columns {
			if v := row.Get(col); v.IsNumber() && !v.IsFinite() {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row.Clone())
		}
	}
	return out, nil
}
