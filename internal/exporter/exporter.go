package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// Format names an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Formats lists every supported output format.
var Formats = []Format{FormatCSV, FormatXLSX, FormatJSON, FormatParquet}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewConfigError(fmt.Sprintf("unknown output format %q", s), nil)
}

// Exporter writes a table to one file per requested format.
type Exporter struct {
	csv    *CSVWriter
	xlsx   *XLSXWriter
	logger *slog.Logger
	// BOM prefixes CSV output with a UTF-8 byte order mark.
	BOM bool
}

// New creates an exporter.
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "exporter"))
	return &Exporter{
		csv:    NewCSVWriter(logger),
		xlsx:   NewXLSXWriter(logger),
		logger: logger,
	}
}

// WithBOM returns a copy of e that writes CSV with or without a byte order
// mark. The writers are shared with e.
func (e *Exporter) WithBOM(bom bool) *Exporter {
	cp := *e
	cp.BOM = bom
	return &cp
}

// Export writes table as dir/name.<format> for every format and returns the
// written paths in format order. schema decides the parquet column types and
// may be empty for the other formats.
func (e *Exporter) Export(ctx context.Context, dir, name string, table domain.Table, schema domain.Schema, formats []Format, formatters FormatterTable) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		path := filepath.Join(dir, name+"."+string(format))
		var err error
		switch format {
		case FormatCSV:
			err = e.csv.WriteTable(path, table, formatters, e.BOM)
		case FormatXLSX:
			err = e.xlsx.Write(path, formatters, Sheet{Name: name, Table: table})
		case FormatJSON:
			err = WriteJSON(path, table, map[string]interface{}{
				"count":   table.Len(),
				"columns": len(table.Columns),
			})
		case FormatParquet:
			err = WriteParquet(path, table, schema)
		default:
			err = errors.NewConfigError(fmt.Sprintf("unknown output format %q", format), nil)
		}
		if err != nil {
			return paths, err
		}

		e.logger.InfoContext(ctx, "exported table",
			slog.String("format", string(format)),
			slog.String("path", path),
			slog.Int("rows", table.Len()))
		paths = append(paths, path)
	}
	return paths, nil
}
