package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// parquetSchema maps inspected column kinds to optional leaves: numeric
// columns become DOUBLE, everything else a UTF-8 string. Every column is
// optional so missing values are stored as nulls.
//
// parquet.Group sorts its fields by name, so the schema is derived from a
// struct type built in table order instead. Struct tags cannot carry a comma
// in a column name, or a name of "-"; such tables fall back to the
// name-sorted group.
func parquetSchema(name string, schema domain.Schema) *parquet.Schema {
	fields := make([]reflect.StructField, 0, len(schema.Columns))
	for i, col := range schema.Columns {
		if strings.Contains(col.Name, ",") || col.Name == "-" {
			return parquetGroupSchema(name, schema)
		}
		typ := reflect.TypeOf("")
		if col.Kind == domain.ColumnNumeric {
			typ = reflect.TypeOf(float64(0))
		}
		fields = append(fields, reflect.StructField{
			Name: fmt.Sprintf("C%d", i),
			Type: typ,
			Tag:  reflect.StructTag("parquet:" + strconv.Quote(col.Name+",optional")),
		})
	}
	model := reflect.Zero(reflect.StructOf(fields)).Interface()
	return parquet.NewSchema(name, parquet.SchemaOf(model))
}

func parquetGroupSchema(name string, schema domain.Schema) *parquet.Schema {
	root := make(parquet.Group, len(schema.Columns))
	for _, col := range schema.Columns {
		var node parquet.Node
		switch col.Kind {
		case domain.ColumnNumeric:
			node = parquet.Leaf(parquet.DoubleType)
		default:
			node = parquet.String()
		}
		root[col.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema(name, root)
}

// WriteParquet writes table to path. schema must come from inspecting table;
// it decides which columns are stored as numbers.
func WriteParquet(path string, table domain.Table, schema domain.Schema) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("create output directory", err).WithContext("path", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("create parquet file", err).WithContext("path", path)
	}
	defer file.Close()

	pschema := parquetSchema("table", schema)
	writer := parquet.NewWriter(file, pschema)

	type leaf struct {
		index   int
		numeric bool
	}
	leaves := make(map[string]leaf, len(schema.Columns))
	for _, col := range schema.Columns {
		lc, ok := pschema.Lookup(col.Name)
		if !ok {
			return errors.NewMissingColumnError(col.Name)
		}
		leaves[col.Name] = leaf{index: lc.ColumnIndex, numeric: col.Kind == domain.ColumnNumeric}
	}

	rows := make([]parquet.Row, 0, len(table.Rows))
	for _, rec := range table.Rows {
		row := make(parquet.Row, len(leaves))
		for name, l := range leaves {
			v := rec.Get(name)
			switch {
			case v.IsMissing():
				row[l.index] = parquet.NullValue().Level(0, 0, l.index)
			case l.numeric && v.IsNumber():
				row[l.index] = parquet.DoubleValue(v.Num).Level(0, 1, l.index)
			default:
				row[l.index] = parquet.ByteArrayValue([]byte(v.String())).Level(0, 1, l.index)
			}
		}
		rows = append(rows, row)
	}

	if _, err := writer.WriteRows(rows); err != nil {
		return errors.NewStorageError("write parquet rows", err).WithContext("path", path)
	}
	if err := writer.Close(); err != nil {
		return errors.NewStorageError("close parquet writer", err).WithContext("path", path)
	}
	return nil
}
