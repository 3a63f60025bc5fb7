package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/validation"
)

var validate = validation.New()

// Input formats
const (
	InputCSV  = "csv"
	InputXLSX = "xlsx"
	InputHTML = "html"
)

// PipelineDefinition is one declarative pipeline: load → filter → enrich →
// drop non-finite → aggregate → layout → export.
type PipelineDefinition struct {
	Name      string                        `yaml:"name" json:"name" validate:"required"`
	Input     InputSpec                     `yaml:"input" json:"input"`
	Filter    *FilterSpec                   `yaml:"filter,omitempty" json:"filter,omitempty"`
	Rules     []dataprocessing.RuleSpec     `yaml:"rules,omitempty" json:"rules,omitempty" validate:"dive"`
	Finite    []string                      `yaml:"finite,omitempty" json:"finite,omitempty" validate:"dive,required"`
	Aggregate *dataprocessing.AggregateSpec `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	Layout    LayoutSpec                    `yaml:"layout,omitempty" json:"layout,omitempty"`
	Output    OutputSpec                    `yaml:"output" json:"output"`

	// baseDir anchors relative paths; set by LoadPipeline.
	baseDir string
}

// InputSpec locates the input table.
type InputSpec struct {
	Path      string   `yaml:"path,omitempty" json:"path,omitempty"`
	URL       string   `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	Format    string   `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=csv xlsx html"`
	Sheet     string   `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	HeaderRow int      `yaml:"header_row,omitempty" json:"header_row,omitempty" validate:"gte=0"`
	Delimiter string   `yaml:"delimiter,omitempty" json:"delimiter,omitempty" validate:"omitempty,len=1"`
	Selector  string   `yaml:"selector,omitempty" json:"selector,omitempty"`
	Index     int      `yaml:"table_index,omitempty" json:"table_index,omitempty" validate:"gte=0"`
	Missing   []string `yaml:"missing,omitempty" json:"missing,omitempty"`
}

// FilterSpec keeps rows whose column equals a value.
type FilterSpec struct {
	Column string `yaml:"column" json:"column" validate:"required"`
	Equals string `yaml:"equals" json:"equals"`
}

// LayoutSpec reorders and projects the enriched table before export.
type LayoutSpec struct {
	Move   []MoveSpec  `yaml:"move,omitempty" json:"move,omitempty" validate:"dive"`
	Select *SelectSpec `yaml:"select,omitempty" json:"select,omitempty"`
}

// MoveSpec moves one column to a zero-based position.
type MoveSpec struct {
	Column   string `yaml:"column" json:"column" validate:"required"`
	Position int    `yaml:"position" json:"position" validate:"gte=0"`
}

// SelectSpec keeps explicit columns followed by every column matching one
// of the prefixes. Prefixes are resolved once against the inspected schema.
type SelectSpec struct {
	Columns  []string `yaml:"columns,omitempty" json:"columns,omitempty" validate:"dive,required"`
	Prefixes []string `yaml:"prefixes,omitempty" json:"prefixes,omitempty" validate:"dive,required"`
}

// OutputSpec names where and how results are written.
type OutputSpec struct {
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// Name is the file stem; defaults to the pipeline name.
	Name       string            `yaml:"name,omitempty" json:"name,omitempty"`
	Formats    []string          `yaml:"formats,omitempty" json:"formats,omitempty" validate:"dive,oneof=csv xlsx json parquet"`
	Formatters map[string]string `yaml:"formatters,omitempty" json:"formatters,omitempty"`
	BOM        bool              `yaml:"bom,omitempty" json:"bom,omitempty"`
}

// LoadPipeline reads and validates a definition. Relative input and output
// paths resolve against the definition's directory.
func LoadPipeline(path string) (*PipelineDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("pipeline definition %s", path))
		}
		return nil, errors.NewStorageError("read pipeline definition", err).WithContext("path", path)
	}

	def, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.baseDir = filepath.Dir(path)

	if err := def.ValidateInput(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParsePipeline decodes and validates a YAML definition without checking
// its input source, so callers may supply the table themselves.
func ParsePipeline(data []byte) (*PipelineDefinition, error) {
	var def PipelineDefinition
	if err := yaml.UnmarshalStrict(data, &def); err != nil {
		return nil, errors.NewConfigError("decode pipeline definition", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
// Rule specs are compiled so kind-specific fields are checked up front.
func (d *PipelineDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	_, err := dataprocessing.CompileRules(d.Rules)
	return err
}

// ValidateInput checks that the input names a source whose format is known.
func (d *PipelineDefinition) ValidateInput() error {
	if d.Input.Path == "" && d.Input.URL == "" {
		return errors.NewAppValidationError("input.path or input.url is required")
	}
	format := d.InputFormat()
	if format == "" {
		return errors.NewAppValidationError(
			fmt.Sprintf("cannot infer input format of %q, set input.format", d.Input.Path))
	}
	if format == InputHTML && d.Input.URL == "" {
		return errors.NewAppValidationError("html input requires input.url")
	}
	return nil
}

// InputFormat returns the declared format, or infers it from the URL or the
// path extension. Empty means unknown.
func (d *PipelineDefinition) InputFormat() string {
	if d.Input.Format != "" {
		return d.Input.Format
	}
	if d.Input.URL != "" {
		return InputHTML
	}
	switch strings.ToLower(filepath.Ext(d.Input.Path)) {
	case ".csv", ".txt", ".tsv":
		return InputCSV
	case ".xlsx", ".xlsm":
		return InputXLSX
	}
	return ""
}

// InputPath is the input path resolved against the definition's directory.
func (d *PipelineDefinition) InputPath() string {
	return ResolvePath(d.baseDir, d.Input.Path)
}

// OutputDir is the output directory resolved against the definition's
// directory, "out" when unset.
func (d *PipelineDefinition) OutputDir() string {
	dir := d.Output.Dir
	if dir == "" {
		dir = "out"
	}
	return ResolvePath(d.baseDir, dir)
}

// OutputName is the file stem for written outputs.
func (d *PipelineDefinition) OutputName() string {
	if d.Output.Name != "" {
		return d.Output.Name
	}
	return d.Name
}

// SetBaseDir anchors relative paths, for definitions not read from disk.
func (d *PipelineDefinition) SetBaseDir(dir string) {
	d.baseDir = dir
}

// Confine anchors a definition received from a remote client at root. Paths
// must be relative and stay inside root once cleaned, and the output file
// stem must be a bare name. input.url is refused unless allowRemoteInput.
func (d *PipelineDefinition) Confine(root string, allowRemoteInput bool) error {
	if d.Input.URL != "" && !allowRemoteInput {
		return errors.NewAppValidationError("input.url is not accepted for remote runs").
			WithContext("field", "input.url")
	}
	if err := confinedPath("input.path", d.Input.Path); err != nil {
		return err
	}
	if err := confinedPath("output.dir", d.Output.Dir); err != nil {
		return err
	}
	if name := d.OutputName(); name == "." || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return errors.NewAppValidationError(fmt.Sprintf("output.name %q must be a plain file name", name)).
			WithContext("field", "output.name")
	}
	d.baseDir = root
	return nil
}

// confinedPath rejects absolute paths and paths that climb out of the base
// directory once cleaned. Empty paths pass.
func confinedPath(field, path string) error {
	if path == "" {
		return nil
	}
	if !filepath.IsLocal(path) || strings.HasPrefix(path, `\`) {
		return errors.NewAppValidationError(fmt.Sprintf("%s %q must be a relative path inside the data directory", field, path)).
			WithContext("field", field)
	}
	return nil
}

// ReadOptions converts the input section into reader options.
func (d *PipelineDefinition) ReadOptions() dataprocessing.ReadOptions {
	opts := dataprocessing.ReadOptions{
		MissingTokens: d.Input.Missing,
		Sheet:         d.Input.Sheet,
		HeaderRow:     d.Input.HeaderRow,
	}
	if d.Input.Delimiter != "" {
		opts.Comma = []rune(d.Input.Delimiter)[0]
	}
	return opts
}

// ParseFilter parses a "column=value" filter flag.
func ParseFilter(s string) (*FilterSpec, error) {
	column, value, ok := strings.Cut(s, "=")
	column = strings.TrimSpace(column)
	if !ok || column == "" {
		return nil, errors.NewAppValidationError(fmt.Sprintf("filter %q must look like column=value", s))
	}
	return &FilterSpec{Column: column, Equals: value}, nil
}
