package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// AggregateSpec describes one grouped summary.
type AggregateSpec struct {
	// GroupBy lists the categorical key columns.
	GroupBy []string `json:"group_by" yaml:"group_by" validate:"required,min=1,dive,required"`
	// Measure is the numeric column the statistics are computed over.
	Measure string `json:"measure" yaml:"measure" validate:"required"`
	// OrderBy is the ordering column (e.g. year) whose span becomes the
	// "<min> - <max>" range. Optional.
	OrderBy string `json:"order_by,omitempty" yaml:"order_by,omitempty"`
	// Stats are the statistics to compute, in output order.
	Stats []domain.StatName `json:"stats" yaml:"stats" validate:"required,min=1"`
	// Separator joins the serialized measure values. Defaults to ",".
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// DefaultSeparator joins serialized measure values.
const DefaultSeparator = ","

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	// Separator used when AggregateSpec.Separator is empty
	Separator string
}

// Summarizer computes grouped descriptive statistics over a table.
type Summarizer struct {
	logger    *slog.Logger
	separator string
}

// NewSummarizer creates a summarizer. A nil logger falls back to slog.Default().
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Separator == "" {
		config.Separator = DefaultSeparator
	}

	return &Summarizer{
		logger:    logger.With(slog.String("component", "summarizer")),
		separator: config.Separator,
	}
}

// Aggregate is the pure form of Summarizer.Summarize with default settings
// and no logging.
func Aggregate(table domain.Table, spec AggregateSpec) ([]domain.SummaryRecord, error) {
	s := &Summarizer{logger: slog.New(discardHandler{}), separator: DefaultSeparator}
	return s.Summarize(context.Background(), table, spec)
}

type group struct {
	key      []string
	values   []domain.Value
	measures []domain.Value
	ordering []domain.Value
}

// Summarize partitions table by spec.GroupBy and computes spec.Stats over
// spec.Measure for every group. Groups come out in the order their key first
// appears in the table. Missing measure values are ignored by every
// statistic; a group without any present value gets missing statistics.
func (s *Summarizer) Summarize(ctx context.Context, table domain.Table, spec AggregateSpec) ([]domain.SummaryRecord, error) {
	if err := s.validate(table, spec); err != nil {
		return nil, err
	}

	sep := spec.Separator
	if sep == "" {
		sep = s.separator
	}

	var (
		order  []string
		groups = make(map[string]*group)
	)
	for _, row := range table.Rows {
		id, display, values := groupKey(row, spec.GroupBy)
		g, ok := groups[id]
		if !ok {
			g = &group{key: display, values: values}
			groups[id] = g
			order = append(order, id)
		}
		g.measures = append(g.measures, row.Get(spec.Measure))
		if spec.OrderBy != "" {
			g.ordering = append(g.ordering, row.Get(spec.OrderBy))
		}
	}

	out := make([]domain.SummaryRecord, 0, len(order))
	for _, id := range order {
		out = append(out, s.summarizeGroup(groups[id], spec, sep))
	}

	s.logger.DebugContext(ctx, "summarized table",
		slog.String("measure", spec.Measure),
		slog.Any("group_by", spec.GroupBy),
		slog.Int("rows", table.Len()),
		slog.Int("groups", len(out)))

	return out, nil
}

func (s *Summarizer) validate(table domain.Table, spec AggregateSpec) error {
	if len(spec.GroupBy) == 0 {
		return errors.NewAppValidationError("aggregate: at least one group_by column is required")
	}
	if spec.Measure == "" {
		return errors.NewAppValidationError("aggregate: measure column is required")
	}
	if len(spec.Stats) == 0 {
		return errors.NewAppValidationError("aggregate: at least one statistic is required")
	}
	for _, name := range spec.Stats {
		if _, err := domain.ParseStatName(string(name)); err != nil {
			return errors.NewAppError(errors.ErrTypeValidation, "aggregate", err)
		}
	}

	if err := requireColumns(table, spec.GroupBy...); err != nil {
		return err
	}
	if err := requireColumns(table, spec.Measure); err != nil {
		return err
	}
	if spec.OrderBy != "" {
		if err := requireColumns(table, spec.OrderBy); err != nil {
			return err
		}
	}
	if err := validateGroupNames(spec); err != nil {
		return err
	}
	return requireNumeric(table, spec.Measure)
}

// validateGroupNames rejects group columns that would collide with each
// other or with a summary column in SummaryTable.
func validateGroupNames(spec AggregateSpec) error {
	reserved := make(map[string]bool)
	for _, col := range SummaryColumns(spec)[len(spec.GroupBy):] {
		reserved[col] = true
	}
	seen := make(map[string]bool, len(spec.GroupBy))
	for _, col := range spec.GroupBy {
		if reserved[col] {
			return errors.NewAppValidationError(
				fmt.Sprintf("aggregate: group_by column %q clashes with a summary column", col)).
				WithContext(errors.ContextColumn, col)
		}
		if seen[col] {
			return errors.NewAppValidationError(
				fmt.Sprintf("aggregate: group_by column %q is listed twice", col)).
				WithContext(errors.ContextColumn, col)
		}
		seen[col] = true
	}
	return nil
}

func (s *Summarizer) summarizeGroup(g *group, spec AggregateSpec, sep string) domain.SummaryRecord {
	present := make([]float64, 0, len(g.measures))
	serialized := make([]string, len(g.measures))
	for i, v := range g.measures {
		serialized[i] = v.String()
		if f, ok := v.Float(); ok {
			present = append(present, f)
		}
	}

	stats := make(map[domain.StatName]domain.Value, len(spec.Stats))
	for _, name := range spec.Stats {
		canonical, _ := domain.ParseStatName(string(name))
		stats[canonical] = computeStat(canonical, present)
	}

	rec := domain.SummaryRecord{
		Group:   g.key,
		Keys:    g.values,
		Count:   len(g.measures),
		Missing: len(g.measures) - len(present),
		Stats:   stats,
		Values:  strings.Join(serialized, sep),
	}
	if spec.OrderBy != "" {
		rec.Range = valueRange(g.ordering)
	}
	return rec
}

// groupKey returns an identity that keeps kinds apart (the number 1 and the
// text "1" are different groups, as are missing and the text "NA") together
// with the display form and the value of each key part.
func groupKey(row domain.Record, columns []string) (string, []string, []domain.Value) {
	var id strings.Builder
	display := make([]string, len(columns))
	values := make([]domain.Value, len(columns))
	for i, col := range columns {
		v := row.Get(col)
		if i > 0 {
			id.WriteByte(0x1f)
		}
		fmt.Fprintf(&id, "%d:%s", v.Kind, v.String())
		display[i] = v.String()
		values[i] = v
	}
	return id.String(), display, values
}

// SummaryColumns returns the column layout used when summaries are rendered
// as a table: group columns, n, missing, each statistic, range, values.
func SummaryColumns(spec AggregateSpec) []string {
	cols := append([]string(nil), spec.GroupBy...)
	cols = append(cols, "n", "missing")
	for _, name := range spec.Stats {
		canonical, err := domain.ParseStatName(string(name))
		if err != nil {
			canonical = name
		}
		cols = append(cols, string(canonical))
	}
	if spec.OrderBy != "" {
		cols = append(cols, "range")
	}
	return append(cols, "values")
}

// SummaryTable renders summaries as a table for the exporters.
func SummaryTable(spec AggregateSpec, summaries []domain.SummaryRecord) domain.Table {
	table := domain.NewTable(SummaryColumns(spec)...)
	for _, s := range summaries {
		row := make(domain.Record, len(table.Columns))
		for i, col := range spec.GroupBy {
			switch {
			case i < len(s.Keys):
				row[col] = s.Keys[i]
			case i < len(s.Group):
				row[col] = groupValue(s.Group[i])
			}
		}
		row["n"] = domain.Num(float64(s.Count))
		row["missing"] = domain.Num(float64(s.Missing))
		for _, name := range spec.Stats {
			canonical, _ := domain.ParseStatName(string(name))
			row[string(canonical)] = s.Stat(canonical)
		}
		if spec.OrderBy != "" {
			row["range"] = domain.Str(s.Range)
		}
		row["values"] = domain.Str(s.Values)
		table.Rows = append(table.Rows, row)
	}
	return table
}

func groupValue(s string) domain.Value {
	if s == domain.MissingToken {
		return domain.Null()
	}
	return domain.Str(s)
}

// discardHandler drops every record; used by the pure package-level helpers.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
