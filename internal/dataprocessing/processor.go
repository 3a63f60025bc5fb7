package dataprocessing

import (
	"context"
	"log/slog"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// Enricher applies derivation rules to a table.
type Enricher struct {
	logger *slog.Logger
}

// NewEnricher creates an enricher. A nil logger falls back to slog.Default().
func NewEnricher(logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{logger: logger.With(slog.String("component", "enricher"))}
}

// Enrich is the pure form of Enricher.Apply without logging.
func Enrich(table domain.Table, rules []Rule) (domain.Table, error) {
	e := &Enricher{logger: slog.New(discardHandler{})}
	return e.Apply(context.Background(), table, rules)
}

// Apply runs rules in order and returns a new table; the input is not
// modified. Each rule adds its output column at the end, or overwrites the
// column in place if it already exists. Later rules see the columns earlier
// rules produced. Row order and count are preserved.
//
// Input columns and types are checked for each rule before it derives any
// row, and the first failure aborts with the rule's index attached.
func (e *Enricher) Apply(ctx context.Context, table domain.Table, rules []Rule) (domain.Table, error) {
	out := table.Clone()

	for i, rule := range rules {
		if err := requireColumns(out, rule.Inputs()...); err != nil {
			return domain.Table{}, errors.RuleError(i, rule.Kind(), err)
		}
		if err := rule.Check(out); err != nil {
			return domain.Table{}, errors.RuleError(i, rule.Kind(), err)
		}

		for _, row := range out.Rows {
			row[rule.Output()] = rule.Derive(row)
		}
		if !out.HasColumn(rule.Output()) {
			out.Columns = append(out.Columns, rule.Output())
		}

		e.logger.DebugContext(ctx, "rule applied",
			slog.Int("rule_index", i),
			slog.String("kind", rule.Kind()),
			slog.String("output", rule.Output()))
	}

	return out, nil
}
