package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// DefaultMissingTokens are the cell spellings read as missing.
var DefaultMissingTokens = []string{"", "NA", "N/A", "NaN", "-"}

// ReadOptions controls how raw cells become a table.
type ReadOptions struct {
	// MissingTokens are read as missing. Nil uses DefaultMissingTokens.
	MissingTokens []string
	// Sheet selects a workbook sheet. Empty uses the first sheet.
	Sheet string
	// HeaderRow is the zero-based row holding column names; rows above it
	// (titles, notes) are skipped.
	HeaderRow int
	// Comma is the CSV field delimiter. Zero means ',', or a tab when
	// ReadCSVFile reads a .tsv file.
	Comma rune
}

func (o ReadOptions) missing() []string {
	if o.MissingTokens == nil {
		return DefaultMissingTokens
	}
	return o.MissingTokens
}

// ReadCSV parses delimited text with a header row.
func ReadCSV(r io.Reader, opts ReadOptions) (domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return domain.Table{}, errors.NewParsingError("read csv", err)
	}
	return TableFromRows(rows, opts)
}

// ReadCSVFile opens path and parses it with ReadCSV. A .tsv file is split on
// tabs unless opts names another delimiter.
func ReadCSVFile(path string, opts ReadOptions) (domain.Table, error) {
	if opts.Comma == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
		opts.Comma = '\t'
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, errors.NewStorageError("open csv", err).WithContext("path", path)
	}
	defer f.Close()

	table, err := ReadCSV(f, opts)
	if err != nil {
		return domain.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadXLSX reads one sheet of a workbook.
func ReadXLSX(path string, opts ReadOptions) (domain.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Table{}, errors.NewStorageError("open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.Table{}, errors.NewParsingError("workbook has no sheets", nil).WithContext("path", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.Table{}, errors.NewParsingError(fmt.Sprintf("read sheet %q", sheet), err).WithContext("path", path)
	}
	return TableFromRows(rows, opts)
}

// TableFromRows types raw string rows into a table. The header row names the
// columns; blank names become column_<n> and repeated names get a numeric
// suffix. Short rows are padded with missing values, blank rows are skipped.
func TableFromRows(rows [][]string, opts ReadOptions) (domain.Table, error) {
	if opts.HeaderRow < 0 || opts.HeaderRow >= len(rows) {
		return domain.Table{}, errors.NewParsingError(
			fmt.Sprintf("header row %d not present in %d rows", opts.HeaderRow, len(rows)), nil)
	}

	table := domain.NewTable(headerNames(rows[opts.HeaderRow])...)
	missing := opts.missing()

	for i, raw := range rows[opts.HeaderRow+1:] {
		if blankRow(raw) {
			continue
		}
		if len(raw) > len(table.Columns) {
			return domain.Table{}, errors.NewParsingError(
				fmt.Sprintf("row %d has %d cells for %d columns", opts.HeaderRow+i+2, len(raw), len(table.Columns)), nil)
		}

		rec := make(domain.Record, len(table.Columns))
		for j, col := range table.Columns {
			if j < len(raw) {
				rec[col] = domain.ParseValue(raw[j], missing)
			} else {
				rec[col] = domain.Null()
			}
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = name
	}
	return names
}

func blankRow(raw []string) bool {
	for _, cell := range raw {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
