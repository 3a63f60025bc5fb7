package dataprocessing

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

func TestMoveColumn(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		position int
		want     []string
	}{
		{"to front", "value", 0, []string{"value", "coo", "cod", "year", "litres", "transport"}},
		{"to middle", "coo", 2, []string{"cod", "year", "coo", "value", "litres", "transport"}},
		{"past end", "coo", 42, []string{"cod", "year", "value", "litres", "transport", "coo"}},
		{"same place", "year", 2, []string{"coo", "cod", "year", "value", "litres", "transport"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := wineTable(t)
			got, err := MoveColumn(tbl, tt.column, tt.position)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Columns)
			assert.Equal(t, []string{"coo", "cod", "year", "value", "litres", "transport"}, tbl.Columns)
		})
	}
}

func TestMoveColumn_Errors(t *testing.T) {
	_, err := MoveColumn(wineTable(t), "price", 0)
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))

	_, err = MoveColumn(wineTable(t), "coo", -1)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSelectColumns(t *testing.T) {
	got, err := SelectColumns(wineTable(t), []string{"year", "coo"})
	require.NoError(t, err)

	assert.Equal(t, []string{"year", "coo"}, got.Columns)
	assert.Equal(t, 4, got.Len())
	assert.Len(t, got.Rows[0], 2)
	assert.Equal(t, []string{"2019", "FR"}, got.Matrix()[0])

	_, err = SelectColumns(wineTable(t), []string{"year", "destination"})
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))

	_, err = SelectColumns(wineTable(t), []string{"year", "year"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestFilterEquals(t *testing.T) {
	tests := []struct {
		name   string
		column string
		value  string
		want   int
	}{
		{"text match", "coo", "FR", 2},
		{"numeric match", "year", "2020", 2},
		{"missing never matches", "cod", "NA", 0},
		{"no match", "coo", "IT", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterEquals(wineTable(t), tt.column, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Len())
			assert.Len(t, got.Columns, 6)
		})
	}

	_, err := FilterEquals(wineTable(t), "country", "FR")
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))
}

func TestDropNonFinite(t *testing.T) {
	tbl := domain.NewTable("a", "b")
	require.NoError(t, tbl.Append(domain.Num(1), domain.Num(math.Inf(1))))
	require.NoError(t, tbl.Append(domain.Num(2), domain.Null()))
	require.NoError(t, tbl.Append(domain.Num(math.NaN()), domain.Num(3)))
	require.NoError(t, tbl.Append(domain.Num(4), domain.Str("x")))

	got, err := DropNonFinite(tbl, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())

	got, err = DropNonFinite(tbl, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2", "NA"}, {"4", "x"}}, got.Matrix())

	_, err = DropNonFinite(tbl, "c")
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))
}

func TestInspectSchema(t *testing.T) {
	tbl := domain.NewTable("num", "txt", "empty", "mixed")
	require.NoError(t, tbl.Append(domain.Num(1), domain.Str("a"), domain.Null(), domain.Num(1)))
	require.NoError(t, tbl.Append(domain.Null(), domain.Str("b"), domain.Null(), domain.Str("x")))

	schema := InspectSchema(tbl)
	require.Len(t, schema.Columns, 4)

	want := []domain.ColumnInfo{
		{Name: "num", Kind: domain.ColumnNumeric, Missing: 1, Rows: 2},
		{Name: "txt", Kind: domain.ColumnText, Missing: 0, Rows: 2},
		{Name: "empty", Kind: domain.ColumnEmpty, Missing: 2, Rows: 2},
		{Name: "mixed", Kind: domain.ColumnMixed, Missing: 0, Rows: 2},
	}
	assert.Equal(t, want, schema.Columns)
}

func TestResolveColumns(t *testing.T) {
	tbl := domain.NewTable("crop", "yield_2019", "yield_2020", "area")
	schema := InspectSchema(tbl)

	got, err := ResolveColumns(schema, []string{"crop", "yield_2020"}, []string{"yield_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"crop", "yield_2020", "yield_2019"}, got)

	_, err = ResolveColumns(schema, []string{"price"}, nil)
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))

	_, err = ResolveColumns(schema, nil, []string{"price_"})
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffcrop, year ,yield,\n" +
		"wheat,2019,\"1,250.5\",x\n" +
		"barley,2020,NA\n" +
		",,,\n" +
		"oats,2021,-\n"

	tbl, err := ReadCSV(strings.NewReader(input), ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"crop", "year", "yield", "column_4"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, 1250.5, tbl.Rows[0].Get("yield").Num)
	assert.True(t, tbl.Rows[1].Get("yield").IsMissing())
	assert.True(t, tbl.Rows[1].Get("column_4").IsMissing())
	assert.True(t, tbl.Rows[2].Get("yield").IsMissing())
	assert.Equal(t, "oats", tbl.Rows[2].Get("crop").Str)
}

func TestReadCSV_Options(t *testing.T) {
	input := "Wine imports 2019\n\ncoo;cod;value\nFR;DE;.\n"

	tbl, err := ReadCSV(strings.NewReader(input), ReadOptions{HeaderRow: 1, Comma: ';', MissingTokens: []string{"."}})
	require.NoError(t, err)
	assert.Equal(t, []string{"coo", "cod", "value"}, tbl.Columns)
	assert.True(t, tbl.Rows[0].Get("value").IsMissing())
}

func TestReadCSVFile_TSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yields.TSV")
	require.NoError(t, os.WriteFile(path, []byte("crop\tyield\nwheat\t1,250.5\nbarley\tNA\n"), 0o644))

	tbl, err := ReadCSVFile(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"crop", "yield"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 1250.5, tbl.Rows[0].Get("yield").Num)
	assert.True(t, tbl.Rows[1].Get("yield").IsMissing())

	// An explicit delimiter still wins.
	semi := filepath.Join(dir, "semi.tsv")
	require.NoError(t, os.WriteFile(semi, []byte("crop;yield\nwheat;3\n"), 0o644))
	tbl, err = ReadCSVFile(semi, ReadOptions{Comma: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"crop", "yield"}, tbl.Columns)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2,3\n"), ReadOptions{})
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader(""), ReadOptions{})
	assert.Error(t, err)

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "absent.csv"), ReadOptions{})
	assert.Error(t, err)
}

func TestTableFromRows_DuplicateHeaders(t *testing.T) {
	tbl, err := TableFromRows([][]string{{"v", "v", "v"}, {"1", "2", "3"}}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "v_2", "v_3"}, tbl.Columns)
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yields.xlsx")

	f := excelize.NewFile()
	_, err := f.NewSheet("yields")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("yields", "A1", &[]interface{}{"Crop yields"}))
	require.NoError(t, f.SetSheetRow("yields", "A2", &[]interface{}{"crop", "year", "yield"}))
	require.NoError(t, f.SetSheetRow("yields", "A3", &[]interface{}{"wheat", 2019, 7.25}))
	require.NoError(t, f.SetSheetRow("yields", "A4", &[]interface{}{"barley", 2020}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := ReadXLSX(path, ReadOptions{Sheet: "yields", HeaderRow: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"crop", "year", "yield"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 7.25, tbl.Rows[0].Get("yield").Num)
	assert.True(t, tbl.Rows[1].Get("yield").IsMissing())

	_, err = ReadXLSX(path, ReadOptions{Sheet: "missing"})
	assert.Error(t, err)
}
