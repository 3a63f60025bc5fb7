package dataprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/shared/testutil"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

func cropTable(t *testing.T) domain.Table {
	t.Helper()
	tbl := domain.NewTable("crop", "year", "yield")
	rows := [][]domain.Value{
		{domain.Str("wheat"), domain.Num(2018), domain.Num(10)},
		{domain.Str("barley"), domain.Num(2018), domain.Num(4)},
		{domain.Str("wheat"), domain.Num(2019), domain.Null()},
		{domain.Str("wheat"), domain.Num(2020), domain.Num(20)},
		{domain.Str("oats"), domain.Num(2019), domain.Null()},
		{domain.Str("barley"), domain.Num(2021), domain.Num(6)},
	}
	for _, r := range rows {
		require.NoError(t, tbl.Append(r...))
	}
	return tbl
}

func TestAggregate_GroupOrderAndCount(t *testing.T) {
	tbl := cropTable(t)

	got, err := Aggregate(tbl, AggregateSpec{
		GroupBy: []string{"crop"},
		Measure: "yield",
		Stats:   []domain.StatName{domain.StatAverage},
	})
	require.NoError(t, err)

	keys := make([]string, len(got))
	for i, s := range got {
		keys[i] = s.Key()
	}
	assert.Equal(t, []string{"wheat", "barley", "oats"}, keys)
}

func TestAggregate_IgnoresMissing(t *testing.T) {
	got, err := Aggregate(cropTable(t), AggregateSpec{
		GroupBy: []string{"crop"},
		Measure: "yield",
		OrderBy: "year",
		Stats:   domain.AllStats,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	wheat := got[0]
	assert.Equal(t, 3, wheat.Count)
	assert.Equal(t, 1, wheat.Missing)
	assert.Equal(t, 15.0, wheat.Stat(domain.StatAverage).Num)
	assert.Equal(t, 15.0, wheat.Stat(domain.StatMedian).Num)
	assert.Equal(t, 20.0, wheat.Stat(domain.StatMax).Num)
	assert.Equal(t, 10.0, wheat.Stat(domain.StatMin).Num)
	assert.InDelta(t, math.Sqrt(50), wheat.Stat(domain.StatSD).Num, 1e-12)
	assert.Equal(t, "2018 - 2020", wheat.Range)
	assert.Equal(t, "10,NA,20", wheat.Values)
}

func TestAggregate_AllMissingGroup(t *testing.T) {
	got, err := Aggregate(cropTable(t), AggregateSpec{
		GroupBy: []string{"crop"},
		Measure: "yield",
		OrderBy: "year",
		Stats:   domain.AllStats,
	})
	require.NoError(t, err)

	oats := got[2]
	assert.Equal(t, "oats", oats.Key())
	for _, name := range domain.AllStats {
		assert.True(t, oats.Stat(name).IsMissing(), "stat %s", name)
	}
	assert.Equal(t, "NA", oats.Values)
	assert.Equal(t, "2019 - 2019", oats.Range)
}

func TestAggregate_Statistics(t *testing.T) {
	tests := []struct {
		name   string
		values []domain.Value
		stat   domain.StatName
		want   domain.Value
	}{
		{"median odd", nums(3, 1, 2), domain.StatMedian, domain.Num(2)},
		{"median even", nums(4, 1, 3, 2), domain.StatMedian, domain.Num(2.5)},
		{"sd single value", nums(7), domain.StatSD, domain.Null()},
		{"sd sample", nums(2, 4, 4, 4, 5, 5, 7, 9), domain.StatSD, domain.Num(math.Sqrt(32.0 / 7))},
		{"average with infinity", nums(1, math.Inf(1)), domain.StatAverage, domain.Num(math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := domain.NewTable("g", "x")
			for _, v := range tt.values {
				require.NoError(t, tbl.Append(domain.Str("a"), v))
			}

			got, err := Aggregate(tbl, AggregateSpec{GroupBy: []string{"g"}, Measure: "x", Stats: []domain.StatName{tt.stat}})
			require.NoError(t, err)
			require.Len(t, got, 1)

			v := got[0].Stat(tt.stat)
			if tt.want.IsMissing() {
				assert.True(t, v.IsMissing())
				return
			}
			assert.InDelta(t, tt.want.Num, v.Num, 1e-12)
		})
	}
}

func nums(xs ...float64) []domain.Value {
	out := make([]domain.Value, len(xs))
	for i, x := range xs {
		out[i] = domain.Num(x)
	}
	return out
}

func TestAggregate_MultiColumnKeyAndMissingKey(t *testing.T) {
	tbl := domain.NewTable("coo", "cod", "value")
	require.NoError(t, tbl.Append(domain.Str("FR"), domain.Str("DE"), domain.Num(1)))
	require.NoError(t, tbl.Append(domain.Str("FR"), domain.Null(), domain.Num(2)))
	require.NoError(t, tbl.Append(domain.Str("FR"), domain.Str("NA"), domain.Num(3)))
	require.NoError(t, tbl.Append(domain.Str("FR"), domain.Str("DE"), domain.Num(4)))

	got, err := Aggregate(tbl, AggregateSpec{
		GroupBy:   []string{"coo", "cod"},
		Measure:   "value",
		Stats:     []domain.StatName{"mean"},
		Separator: ";",
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"FR", "DE"}, got[0].Group)
	assert.Equal(t, "1;4", got[0].Values)
	assert.Equal(t, 2.5, got[0].Stat(domain.StatAverage).Num)
	assert.Equal(t, []string{"FR", "NA"}, got[1].Group)
	assert.Equal(t, []string{"FR", "NA"}, got[2].Group)
	assert.Equal(t, "2", got[1].Values)
	assert.Equal(t, "3", got[2].Values)
}

func TestAggregate_Errors(t *testing.T) {
	mixed := domain.NewTable("crop", "yield")
	require.NoError(t, mixed.Append(domain.Str("wheat"), domain.Str("high")))
	clashing := domain.NewTable("crop", "n", "average", "range", "yield")
	require.NoError(t, clashing.Append(domain.Str("wheat"), domain.Num(1), domain.Num(2), domain.Str("a"), domain.Num(3)))

	tests := []struct {
		name    string
		table   domain.Table
		spec    AggregateSpec
		target  error
		column  string
	}{
		{
			name:   "missing group column",
			table:  cropTable(t),
			spec:   AggregateSpec{GroupBy: []string{"country"}, Measure: "yield", Stats: domain.AllStats},
			target: apperrors.ErrMissingColumn,
			column: "country",
		},
		{
			name:   "missing measure",
			table:  cropTable(t),
			spec:   AggregateSpec{GroupBy: []string{"crop"}, Measure: "price", Stats: domain.AllStats},
			target: apperrors.ErrMissingColumn,
			column: "price",
		},
		{
			name:   "missing order column",
			table:  cropTable(t),
			spec:   AggregateSpec{GroupBy: []string{"crop"}, Measure: "yield", OrderBy: "season", Stats: domain.AllStats},
			target: apperrors.ErrMissingColumn,
			column: "season",
		},
		{
			name:   "text measure",
			table:  mixed,
			spec:   AggregateSpec{GroupBy: []string{"crop"}, Measure: "yield", Stats: domain.AllStats},
			target: apperrors.ErrTypeMismatch,
			column: "yield",
		},
		{
			name:   "no statistics",
			table:  cropTable(t),
			spec:   AggregateSpec{GroupBy: []string{"crop"}, Measure: "yield"},
			target: apperrors.ErrValidation,
		},
		{
			name:   "unknown statistic",
			table:  cropTable(t),
			spec:   AggregateSpec{GroupBy: []string{"crop"}, Measure: "yield", Stats: []domain.StatName{"mode"}},
			target: apperrors.ErrValidation,
		},
		{
			name:   "group column named n",
			table:  clashing,
			spec:   AggregateSpec{GroupBy: []string{"n"}, Measure: "yield", Stats: domain.AllStats},
			target: apperrors.ErrValidation,
			column: "n",
		},
		{
			name:   "group column named after a statistic",
			table:  clashing,
			spec:   AggregateSpec{GroupBy: []string{"crop", "average"}, Measure: "yield", Stats: []domain.StatName{"mean"}},
			target: apperrors.ErrValidation,
			column: "average",
		},
		{
			name:   "group column named range",
			table:  clashing,
			spec:   AggregateSpec{GroupBy: []string{"range"}, Measure: "yield", OrderBy: "crop", Stats: domain.AllStats},
			target: apperrors.ErrValidation,
			column: "range",
		},
		{
			name:   "group column listed twice",
			table:  cropTable(t),
			spec:   AggregateSpec{GroupBy: []string{"crop", "crop"}, Measure: "yield", Stats: domain.AllStats},
			target: apperrors.ErrValidation,
			column: "crop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.table, tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)

			if tt.column != "" {
				appErr, ok := apperrors.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, tt.column, appErr.Column())
			}
		})
	}
}

func TestAggregate_FiniteFilterMatchesManualRemoval(t *testing.T) {
	tbl := domain.NewTable("eu", "value", "litres")
	require.NoError(t, tbl.Append(domain.Str("EU"), domain.Num(100), domain.Num(0)))
	require.NoError(t, tbl.Append(domain.Str("EU"), domain.Num(30), domain.Num(10)))
	require.NoError(t, tbl.Append(domain.Str("EU"), domain.Num(50), domain.Num(10)))

	rules := []Rule{RatioRule{Out: "ppl", Numerator: "value", Denominator: "litres"}}
	enriched, err := Enrich(tbl, rules)
	require.NoError(t, err)
	assert.True(t, math.IsInf(enriched.Rows[0].Get("ppl").Num, 1))

	finite, err := DropNonFinite(enriched, "ppl")
	require.NoError(t, err)

	manual := domain.NewTable("eu", "value", "litres")
	manual.Rows = append(manual.Rows, tbl.Rows[1].Clone(), tbl.Rows[2].Clone())
	manualEnriched, err := Enrich(manual, rules)
	require.NoError(t, err)

	spec := AggregateSpec{GroupBy: []string{"eu"}, Measure: "ppl", Stats: []domain.StatName{domain.StatAverage}}
	a, err := Aggregate(finite, spec)
	require.NoError(t, err)
	b, err := Aggregate(manualEnriched, spec)
	require.NoError(t, err)

	assert.Equal(t, 4.0, a[0].Stat(domain.StatAverage).Num)
	assert.Equal(t, b[0].Stat(domain.StatAverage).Num, a[0].Stat(domain.StatAverage).Num)
}

func TestAggregate_NonFiniteSurvivesJSON(t *testing.T) {
	tbl := domain.NewTable("eu", "value", "litres")
	require.NoError(t, tbl.Append(domain.Str("EU"), domain.Num(100), domain.Num(0)))
	require.NoError(t, tbl.Append(domain.Str("EU"), domain.Num(0), domain.Num(0)))
	require.NoError(t, tbl.Append(domain.Str("EU"), domain.Num(30), domain.Num(10)))

	enriched, err := Enrich(tbl, []Rule{RatioRule{Out: "ppl", Numerator: "value", Denominator: "litres"}})
	require.NoError(t, err)

	// The enrich endpoint's output fed back into the aggregate endpoint.
	data, err := json.Marshal(enriched)
	require.NoError(t, err)
	var decoded domain.Table
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, math.IsInf(decoded.Rows[0].Get("ppl").Num, 1))
	assert.True(t, math.IsNaN(decoded.Rows[1].Get("ppl").Num))

	finite, err := DropNonFinite(decoded, "ppl")
	require.NoError(t, err)
	require.Equal(t, 1, finite.Len())

	summaries, err := Aggregate(finite, AggregateSpec{GroupBy: []string{"eu"}, Measure: "ppl", Stats: []domain.StatName{domain.StatAverage}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, summaries[0].Stat(domain.StatAverage).Num)
}

func TestSummarizer_Logs(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	s := NewSummarizer(logger, SummarizerConfig{Separator: "|"})

	got, err := s.Summarize(context.Background(), cropTable(t), AggregateSpec{
		GroupBy: []string{"crop"},
		Measure: "yield",
		Stats:   []domain.StatName{domain.StatMax},
	})
	require.NoError(t, err)
	assert.Equal(t, "10|NA|20", got[0].Values)
	assert.True(t, logs.ContainsMessage("summarized table"))
	assert.True(t, logs.ContainsAttr("component", "summarizer"))
}

func TestSummaryTable(t *testing.T) {
	spec := AggregateSpec{
		GroupBy: []string{"crop"},
		Measure: "yield",
		OrderBy: "year",
		Stats:   []domain.StatName{"mean", domain.StatMax},
	}
	got, err := Aggregate(cropTable(t), spec)
	require.NoError(t, err)

	tbl := SummaryTable(spec, got)
	assert.Equal(t, []string{"crop", "n", "missing", "average", "max", "range", "values"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"wheat", "3", "1", "15", "20", "2018 - 2020", "10,NA,20"}, tbl.Matrix()[0])
	assert.Equal(t, []string{"oats", "1", "1", "NA", "NA", "2019 - 2019", "NA"}, tbl.Matrix()[2])
}

func TestSummaryTable_KeepsKeyKinds(t *testing.T) {
	tbl := domain.NewTable("year", "crop", "yield")
	rows := [][]domain.Value{
		{domain.Num(2018), domain.Str("wheat"), domain.Num(10)},
		{domain.Null(), domain.Str("wheat"), domain.Num(4)},
		{domain.Num(2018), domain.Str("NA wheat"), domain.Num(6)},
	}
	for _, r := range rows {
		require.NoError(t, tbl.Append(r...))
	}

	spec := AggregateSpec{GroupBy: []string{"year", "crop"}, Measure: "yield", Stats: []domain.StatName{domain.StatMax}}
	got, err := Aggregate(tbl, spec)
	require.NoError(t, err)
	require.Len(t, got, 3)

	out := SummaryTable(spec, got)
	require.Equal(t, 3, out.Len())

	tests := []struct {
		row  int
		year domain.Value
		crop string
	}{
		{row: 0, year: domain.Num(2018), crop: "wheat"},
		{row: 1, year: domain.Null(), crop: "wheat"},
		{row: 2, year: domain.Num(2018), crop: "NA wheat"},
	}
	for _, tt := range tests {
		year := out.Rows[tt.row].Get("year")
		assert.Equal(t, tt.year.Kind, year.Kind, "row %d", tt.row)
		if tt.year.IsNumber() {
			assert.Equal(t, tt.year.Num, year.Num, "row %d", tt.row)
		}
		assert.Equal(t, tt.crop, out.Rows[tt.row].Get("crop").String(), "row %d", tt.row)
	}
}
