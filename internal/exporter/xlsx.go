package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// Sheet is one named table in a workbook.
type Sheet struct {
	Name  string
	Table domain.Table
}

// XLSXWriter writes tables to spreadsheet workbooks, one sheet per table.
// Numbers stay numeric cells; missing values are left blank.
type XLSXWriter struct {
	logger *slog.Logger
}

// NewXLSXWriter creates a workbook writer.
func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{logger: logger}
}

// Write creates path holding every sheet in order.
func (w *XLSXWriter) Write(path string, formatters FormatterTable, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return errors.NewAppValidationError("xlsx: no sheets to write")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("create output directory", err).WithContext("path", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.NewStorageError("create header style", err)
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return errors.NewStorageError("rename sheet", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.NewStorageError(fmt.Sprintf("create sheet %q", name), err)
		}

		if err := w.writeSheet(f, name, sheet.Table, formatters, header); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.NewStorageError("save workbook", err).WithContext("path", path)
	}

	w.logger.Debug("wrote workbook", slog.String("path", path), slog.Int("sheets", len(sheets)))
	return nil
}

func (w *XLSXWriter) writeSheet(f *excelize.File, name string, table domain.Table, formatters FormatterTable, headerStyle int) error {
	header := make([]interface{}, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return errors.NewStorageError("write header row", err)
	}
	if len(table.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
			return errors.NewStorageError("style header row", err)
		}
	}

	for r, row := range table.Rows {
		cells := make([]interface{}, len(table.Columns))
		for c, col := range table.Columns {
			cells[c] = cellValue(row.Get(col))
		}
		start, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(name, start, &cells); err != nil {
			return errors.NewStorageError(fmt.Sprintf("write row %d", r+1), err)
		}
	}

	for c, col := range table.Columns {
		fm, ok := formatters.Lookup(col)
		if !ok || len(table.Rows) == 0 || (fm.ExcelNumFmt == 0 && fm.ExcelCustomFmt == "") {
			continue
		}
		numStyle := &excelize.Style{NumFmt: fm.ExcelNumFmt}
		if fm.ExcelCustomFmt != "" {
			custom := fm.ExcelCustomFmt
			numStyle.CustomNumFmt = &custom
		}
		style, err := f.NewStyle(numStyle)
		if err != nil {
			return errors.NewStorageError("create number style", err)
		}
		top, _ := excelize.CoordinatesToCellName(c+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(c+1, len(table.Rows)+1)
		if err := f.SetCellStyle(name, top, bottom, style); err != nil {
			return errors.NewStorageError("style column", err).WithContext(errors.ContextColumn, col)
		}
	}
	return nil
}

// cellValue maps a value to what excelize stores. Non-finite numbers have no
// spreadsheet form and are written as their text.
func cellValue(v domain.Value) interface{} {
	switch {
	case v.IsMissing():
		return nil
	case v.IsFinite():
		return v.Num
	default:
		return v.String()
	}
}
