// Package exporter writes tables to disk.
//
// Exporter dispatches one table to any mix of CSV, XLSX, JSON and Parquet.
// Text outputs render cells through a FormatterTable, a column → named
// formatter map resolved once per pipeline; the same formatters set number
// formats on XLSX columns so spreadsheet cells stay numeric.
//
// Example usage:
//
//	formatters, err := exporter.NewFormatterTable(map[string]string{"yield": "number2"})
//	if err != nil {
//		return err
//	}
//	paths, err := exporter.New(logger).Export(ctx, "out", "summary", table, schema,
//		[]exporter.Format{exporter.FormatCSV, exporter.FormatXLSX}, formatters)
package exporter
