package exporter

import (
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// FormatFunc renders one cell for text outputs.
type FormatFunc func(domain.Value) string

// Formatter is a named cell formatter. ExcelNumFmt is the built-in
// spreadsheet number format applied to the column when writing XLSX and
// ExcelCustomFmt a custom format code used when no built-in one fits. Both
// empty leaves the cell format alone.
type Formatter struct {
	Name           string
	Format         FormatFunc
	ExcelNumFmt    int
	ExcelCustomFmt string
}

var thousandsPrinter = message.NewPrinter(language.English)

func fixed(decimals int) FormatFunc {
	return numeric(func(f float64) string {
		return strconv.FormatFloat(f, 'f', decimals, 64)
	})
}

// numeric wraps a float renderer so missing, text and non-finite cells keep
// their plain rendering.
func numeric(render func(float64) string) FormatFunc {
	return func(v domain.Value) string {
		if !v.IsFinite() {
			return v.String()
		}
		return render(v.Num)
	}
}

// registry lists every named formatter a pipeline can refer to.
var registry = map[string]Formatter{
	"number0": {Name: "number0", Format: fixed(0), ExcelNumFmt: 1},
	"number1": {Name: "number1", Format: fixed(1), ExcelCustomFmt: "0.0"},
	"number2": {Name: "number2", Format: fixed(2), ExcelNumFmt: 2},
	"number3": {Name: "number3", Format: fixed(3), ExcelCustomFmt: "0.000"},
	"percent": {Name: "percent", Format: numeric(func(f float64) string {
		return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
	}), ExcelNumFmt: 10},
	"thousands": {Name: "thousands", Format: numeric(func(f float64) string {
		return thousandsPrinter.Sprintf("%.0f", f)
	}), ExcelNumFmt: 3},
	"text": {Name: "text", Format: domain.Value.String},
}

// FormatterNames returns the registered formatter names, sorted.
func FormatterNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatterTable maps column names to formatters. It is built once per
// pipeline; columns without an entry use the plain value rendering.
type FormatterTable struct {
	byColumn map[string]Formatter
}

// NewFormatterTable resolves a column → formatter-name map. Unknown
// formatter names are a configuration error.
func NewFormatterTable(spec map[string]string) (FormatterTable, error) {
	table := FormatterTable{byColumn: make(map[string]Formatter, len(spec))}
	for column, name := range spec {
		f, ok := registry[name]
		if !ok {
			return FormatterTable{}, errors.NewConfigError(
				fmt.Sprintf("column %q: unknown formatter %q", column, name), nil).
				WithContext(errors.ContextColumn, column)
		}
		table.byColumn[column] = f
	}
	return table, nil
}

// Lookup returns the formatter for column.
func (t FormatterTable) Lookup(column string) (Formatter, bool) {
	f, ok := t.byColumn[column]
	return f, ok
}

// Format renders one cell of column.
func (t FormatterTable) Format(column string, v domain.Value) string {
	if f, ok := t.byColumn[column]; ok {
		return f.Format(v)
	}
	return v.String()
}

// Matrix renders the table rows as strings in column order.
func (t FormatterTable) Matrix(table domain.Table) [][]string {
	out := make([][]string, len(table.Rows))
	for i, row := range table.Rows {
		cells := make([]string, len(table.Columns))
		for j, col := range table.Columns {
			cells[j] = t.Format(col, row.Get(col))
		}
		out[i] = cells
	}
	return out
}
