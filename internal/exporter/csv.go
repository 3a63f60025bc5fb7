package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(path string, options WriteOptions) error {
	w.logger.Debug("writing csv file",
		slog.String("path", path),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("create output directory", err).WithContext("path", path)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return errors.NewStorageError("open csv file", err).WithContext("path", path)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return errors.NewStorageError("write BOM", err).WithContext("path", path)
		}
	}

	writer := csv.NewWriter(file)

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return errors.NewStorageError("write csv header", err).WithContext("path", path)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return errors.NewStorageError(fmt.Sprintf("write csv record %d", i), err).WithContext("path", path)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewStorageError("flush csv", err).WithContext("path", path)
	}
	return nil
}

// WriteTable writes a table with its header, rendering cells through formatters.
func (w *CSVWriter) WriteTable(path string, table domain.Table, formatters FormatterTable, bom bool) error {
	return w.WriteCSV(path, WriteOptions{
		Headers:   table.Columns,
		Records:   formatters.Matrix(table),
		BOMPrefix: bom,
	})
}

// AppendTable appends the rows of table to an existing CSV file without a header.
func (w *CSVWriter) AppendTable(path string, table domain.Table, formatters FormatterTable) error {
	return w.WriteCSV(path, WriteOptions{
		Records: formatters.Matrix(table),
		Append:  true,
	})
}
