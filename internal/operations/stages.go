package operations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/exporter"
	"github.com/141286/SWG-introduction-to-R/internal/scraper"
	"github.com/141286/SWG-introduction-to-R/internal/validation"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// TableScraper fetches an HTML table.
type TableScraper interface {
	Scrape(ctx context.Context, req scraper.Request) (domain.Table, error)
}

// Dependencies are the collaborators pipeline steps are built from.
type Dependencies struct {
	Logger     *slog.Logger
	Scraper    TableScraper
	Exporter   *exporter.Exporter
	Enricher   *dataprocessing.Enricher
	Summarizer *dataprocessing.Summarizer
	Files      *validation.FileValidator
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Exporter == nil {
		d.Exporter = exporter.New(d.Logger)
	}
	if d.Enricher == nil {
		d.Enricher = dataprocessing.NewEnricher(d.Logger)
	}
	if d.Summarizer == nil {
		d.Summarizer = dataprocessing.NewSummarizer(d.Logger, dataprocessing.SummarizerConfig{})
	}
	if d.Files == nil {
		d.Files = validation.NewFileValidator(d.Logger)
	}
	return d
}

// NewPipelineRegistry compiles def into the fixed step sequence
// load, filter, enrich, finite, aggregate, layout, export. Rules, output
// formats and formatters are resolved here so a bad definition fails before
// any data is read.
func NewPipelineRegistry(def *config.PipelineDefinition, deps Dependencies) (*Registry, error) {
	if def == nil {
		return nil, errors.NewAppValidationError("pipeline definition is required")
	}
	deps = deps.withDefaults()

	rules, err := dataprocessing.CompileRules(def.Rules)
	if err != nil {
		return nil, err
	}

	formats := make([]exporter.Format, 0, len(def.Output.Formats))
	for _, name := range def.Output.Formats {
		f, err := exporter.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}

	formatters, err := exporter.NewFormatterTable(def.Output.Formatters)
	if err != nil {
		return nil, err
	}

	return NewRegistry().MustRegister(
		&LoadStep{BaseStep: NewBaseStep(StepIDLoad, StepNameLoad), def: def, scraper: deps.Scraper, files: deps.Files},
		&FilterStep{BaseStep: NewBaseStep(StepIDFilter, StepNameFilter), filter: def.Filter},
		&EnrichStep{BaseStep: NewBaseStep(StepIDEnrich, StepNameEnrich), rules: rules, enricher: deps.Enricher},
		&FiniteStep{BaseStep: NewBaseStep(StepIDFinite, StepNameFinite), columns: def.Finite},
		&AggregateStep{BaseStep: NewBaseStep(StepIDAggregate, StepNameAggregate), spec: def.Aggregate, summarizer: deps.Summarizer},
		&LayoutStep{BaseStep: NewBaseStep(StepIDLayout, StepNameLayout), layout: def.Layout},
		&ExportStep{
			BaseStep:   NewBaseStep(StepIDExport, StepNameExport),
			exporter:   deps.Exporter.WithBOM(def.Output.BOM),
			files:      deps.Files,
			dir:        def.OutputDir(),
			name:       def.OutputName(),
			formats:    formats,
			formatters: formatters,
			aggregate:  def.Aggregate,
		},
	), nil
}

// LoadStep reads the pipeline input into the state.
type LoadStep struct {
	BaseStep
	def     *config.PipelineDefinition
	scraper TableScraper
	files   *validation.FileValidator
}

// Execute reads the inline table, CSV, XLSX or HTML source.
func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	var (
		table  domain.Table
		source string
		err    error
	)

	switch {
	case state.Input != nil:
		table, source = state.Input.Clone(), "inline"
	default:
		if err := s.def.ValidateInput(); err != nil {
			return err
		}
		source = s.def.InputFormat()
		table, err = s.read(ctx, source)
		if err != nil {
			return err
		}
	}

	state.SetTable(table, dataprocessing.InspectSchema(table))
	state.InputRows = table.Len()

	step := state.GetStep(s.ID())
	step.SetMetadata(MetadataSource, source)
	step.SetMetadata(MetadataRows, table.Len())
	step.SetMetadata(MetadataColumns, len(table.Columns))
	return nil
}

func (s *LoadStep) read(ctx context.Context, format string) (domain.Table, error) {
	opts := s.def.ReadOptions()
	switch format {
	case config.InputCSV:
		if err := s.files.ValidateInputFile(s.def.InputPath()); err != nil {
			return domain.Table{}, err
		}
		return dataprocessing.ReadCSVFile(s.def.InputPath(), opts)
	case config.InputXLSX:
		if err := s.files.ValidateInputFile(s.def.InputPath(), ".xlsx", ".xlsm"); err != nil {
			return domain.Table{}, err
		}
		return dataprocessing.ReadXLSX(s.def.InputPath(), opts)
	case config.InputHTML:
		if s.scraper == nil {
			return domain.Table{}, errors.NewConfigError("html input requires a scraper", nil)
		}
		return s.scraper.Scrape(ctx, scraper.Request{
			URL:      s.def.Input.URL,
			Selector: s.def.Input.Selector,
			Index:    s.def.Input.Index,
			Options:  opts,
		})
	}
	return domain.Table{}, errors.NewConfigError(fmt.Sprintf("unsupported input format %q", format), nil)
}

// FilterStep keeps the rows whose column equals the selected value.
type FilterStep struct {
	BaseStep
	filter *config.FilterSpec
}

// Skip implements Skipper
func (s *FilterStep) Skip(*State) (string, bool) {
	return "no filter configured", s.filter == nil
}

// Execute applies the equality filter.
func (s *FilterStep) Execute(ctx context.Context, state *State) error {
	before := state.Table.Len()
	table, err := dataprocessing.FilterEquals(state.Table, s.filter.Column, s.filter.Equals)
	if err != nil {
		return err
	}
	state.SetTable(table, dataprocessing.InspectSchema(table))

	step := state.GetStep(s.ID())
	step.SetMetadata(MetadataRows, table.Len())
	step.SetMetadata(MetadataDropped, before-table.Len())
	return nil
}

// EnrichStep applies derivation rules.
type EnrichStep struct {
	BaseStep
	rules    []dataprocessing.Rule
	enricher *dataprocessing.Enricher
}

// Skip implements Skipper
func (s *EnrichStep) Skip(*State) (string, bool) {
	return "no rules configured", len(s.rules) == 0
}

// Execute applies every rule in order.
func (s *EnrichStep) Execute(ctx context.Context, state *State) error {
	table, err := s.enricher.Apply(ctx, state.Table, s.rules)
	if err != nil {
		return err
	}
	state.SetTable(table, dataprocessing.InspectSchema(table))

	step := state.GetStep(s.ID())
	step.SetMetadata(MetadataColumns, len(table.Columns))
	step.SetMetadata("rules", len(s.rules))
	return nil
}

// FiniteStep drops rows with infinite or NaN values in the listed columns.
type FiniteStep struct {
	BaseStep
	columns []string
}

// Skip implements Skipper
func (s *FiniteStep) Skip(*State) (string, bool) {
	return "no finite columns configured", len(s.columns) == 0
}

// Execute drops the non-finite rows.
func (s *FiniteStep) Execute(ctx context.Context, state *State) error {
	before := state.Table.Len()
	table, err := dataprocessing.DropNonFinite(state.Table, s.columns...)
	if err != nil {
		return err
	}
	state.SetTable(table, dataprocessing.InspectSchema(table))

	step := state.GetStep(s.ID())
	step.SetMetadata(MetadataRows, table.Len())
	step.SetMetadata(MetadataDropped, before-table.Len())
	return nil
}

// AggregateStep summarizes the working table per group.
type AggregateStep struct {
	BaseStep
	spec       *dataprocessing.AggregateSpec
	summarizer *dataprocessing.Summarizer
}

// Skip implements Skipper
func (s *AggregateStep) Skip(*State) (string, bool) {
	return "no aggregate configured", s.spec == nil
}

// Execute computes the summaries.
func (s *AggregateStep) Execute(ctx context.Context, state *State) error {
	summaries, err := s.summarizer.Summarize(ctx, state.Table, *s.spec)
	if err != nil {
		return err
	}
	state.Summaries = summaries
	state.GetStep(s.ID()).SetMetadata(MetadataGroups, len(summaries))
	return nil
}

// LayoutStep moves and projects columns of the working table.
type LayoutStep struct {
	BaseStep
	layout config.LayoutSpec
}

// Skip implements Skipper
func (s *LayoutStep) Skip(*State) (string, bool) {
	return "no layout configured", len(s.layout.Move) == 0 && s.layout.Select == nil
}

// Execute applies the moves, then the projection. Prefixes are resolved
// once against the schema of the table at this point.
func (s *LayoutStep) Execute(ctx context.Context, state *State) error {
	table := state.Table
	for _, mv := range s.layout.Move {
		var err error
		if table, err = dataprocessing.MoveColumn(table, mv.Column, mv.Position); err != nil {
			return err
		}
	}

	if sel := s.layout.Select; sel != nil {
		columns, err := dataprocessing.ResolveColumns(dataprocessing.InspectSchema(table), sel.Columns, sel.Prefixes)
		if err != nil {
			return err
		}
		if table, err = dataprocessing.SelectColumns(table, columns); err != nil {
			return err
		}
	}

	state.SetTable(table, dataprocessing.InspectSchema(table))
	state.GetStep(s.ID()).SetMetadata(MetadataColumns, table.Columns)
	return nil
}

// ExportStep writes the working table and, when present, the summaries.
type ExportStep struct {
	BaseStep
	exporter   *exporter.Exporter
	files      *validation.FileValidator
	dir        string
	name       string
	formats    []exporter.Format
	formatters exporter.FormatterTable
	aggregate  *dataprocessing.AggregateSpec
}

// Skip implements Skipper
func (s *ExportStep) Skip(*State) (string, bool) {
	return "no output formats configured", len(s.formats) == 0
}

// Execute writes <name>.<format> and <name>_summary.<format>.
func (s *ExportStep) Execute(ctx context.Context, state *State) error {
	if err := s.files.ValidateOutputDirectory(s.dir); err != nil {
		return err
	}

	paths, err := s.exporter.Export(ctx, s.dir, s.name, state.Table, state.Schema, s.formats, s.formatters)
	state.Outputs = append(state.Outputs, paths...)
	if err != nil {
		return err
	}

	if s.aggregate != nil {
		summary := dataprocessing.SummaryTable(*s.aggregate, state.Summaries)
		paths, err = s.exporter.Export(ctx, s.dir, s.name+SummarySuffix, summary,
			dataprocessing.InspectSchema(summary), s.formats, s.formatters)
		state.Outputs = append(state.Outputs, paths...)
		if err != nil {
			return err
		}
	}

	state.GetStep(s.ID()).SetMetadata(MetadataFiles, len(state.Outputs))
	return nil
}
