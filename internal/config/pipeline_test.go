package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

const winePipeline = `
name: wine-imports
input:
  path: data/wine.csv
  missing: ["", "NA"]
filter: {column: year, equals: "2019"}
rules:
  - {kind: ratio, output: price_per_litre, numerator: value, denominator: litres}
  - {kind: membership, output: eu, column: cod, members: [FR, DE, IT], member_label: EU, other_label: Non-EU}
  - {kind: recode, output: transport, column: mode, codes: {"10": Sea, "20": Rail}, default: Unknown}
  - {kind: compare, output: transshipment, left: coo, right: cod}
finite: [price_per_litre]
aggregate:
  group_by: [eu]
  measure: price_per_litre
  order_by: year
  stats: [average, median, sd, max, min]
layout:
  move: [{column: eu, position: 0}]
  select: {columns: [eu, cod], prefixes: [price_]}
output:
  dir: out
  formats: [csv, xlsx]
  formatters: {average: number2}
`

func TestLoadPipeline(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, filepath.Join("pipelines", "wine.yaml"), winePipeline)

	def, err := LoadPipeline(path)
	require.NoError(t, err)

	assert.Equal(t, "wine-imports", def.Name)
	assert.Equal(t, InputCSV, def.InputFormat())
	assert.Equal(t, filepath.Join(dir, "pipelines", "data", "wine.csv"), def.InputPath())
	assert.Equal(t, filepath.Join(dir, "pipelines", "out"), def.OutputDir())
	assert.Equal(t, "wine-imports", def.OutputName())

	require.NotNil(t, def.Filter)
	assert.Equal(t, FilterSpec{Column: "year", Equals: "2019"}, *def.Filter)

	require.Len(t, def.Rules, 4)
	assert.Equal(t, dataprocessing.KindRecode, def.Rules[2].Kind)
	assert.Equal(t, "Sea", def.Rules[2].Codes["10"])

	require.NotNil(t, def.Aggregate)
	assert.Equal(t, []domain.StatName{domain.StatAverage, domain.StatMedian, domain.StatSD, domain.StatMax, domain.StatMin}, def.Aggregate.Stats)

	assert.Equal(t, []MoveSpec{{Column: "eu", Position: 0}}, def.Layout.Move)
	assert.Equal(t, []string{"price_"}, def.Layout.Select.Prefixes)
	assert.Equal(t, "number2", def.Output.Formatters["average"])
	assert.Equal(t, []string{"", "NA"}, def.ReadOptions().MissingTokens)
}

func TestLoadPipeline_NotFound(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "missing.yaml"))
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrTypeNotFound, appErr.Type)
}

func TestParsePipeline_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantType  errors.ErrorType
		wantField string
		wantRule  int
	}{
		{
			name:     "unknown key",
			yaml:     "name: x\ninptu: {path: a.csv}\n",
			wantType: errors.ErrTypeConfig,
			wantRule: -1,
		},
		{
			name:      "missing name",
			yaml:      "input: {path: a.csv}\n",
			wantType:  errors.ErrTypeValidation,
			wantField: "name",
			wantRule:  -1,
		},
		{
			name:      "unknown rule kind",
			yaml:      "name: x\nrules: [{kind: divide, output: r}]\n",
			wantType:  errors.ErrTypeValidation,
			wantField: "rules[0].kind",
			wantRule:  -1,
		},
		{
			name:     "ratio without denominator",
			yaml:     "name: x\nrules: [{kind: compare, output: f, left: a, right: b}, {kind: ratio, output: r, numerator: a}]\n",
			wantType: errors.ErrTypeValidation,
			wantRule: 1,
		},
		{
			name:      "negative move position",
			yaml:      "name: x\nlayout: {move: [{column: a, position: -1}]}\n",
			wantType:  errors.ErrTypeValidation,
			wantField: "layout.move[0].position",
			wantRule:  -1,
		},
		{
			name:      "unknown output format",
			yaml:      "name: x\noutput: {formats: [ods]}\n",
			wantType:  errors.ErrTypeValidation,
			wantField: "output.formats[0]",
			wantRule:  -1,
		},
		{
			name:      "aggregate without measure",
			yaml:      "name: x\naggregate: {group_by: [crop], stats: [average]}\n",
			wantType:  errors.ErrTypeValidation,
			wantField: "aggregate.measure",
			wantRule:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(tt.yaml))
			require.Error(t, err)

			appErr, ok := errors.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.wantRule, appErr.RuleIndex())

			if tt.wantField != "" {
				fields, ok := appErr.Context[errors.ContextFields].([]errors.ValidationError)
				require.True(t, ok)
				names := make([]string, len(fields))
				for i, f := range fields {
					names[i] = f.Field
				}
				assert.Contains(t, names, tt.wantField)
			}
		})
	}
}

func TestPipelineDefinition_ValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   InputSpec
		format  string
		wantErr bool
	}{
		{name: "csv by extension", input: InputSpec{Path: "crops.CSV"}, format: InputCSV},
		{name: "xlsx by extension", input: InputSpec{Path: "vessels.xlsx"}, format: InputXLSX},
		{name: "html by url", input: InputSpec{URL: "https://example.org/imports"}, format: InputHTML},
		{name: "declared format wins", input: InputSpec{Path: "export.dat", Format: InputCSV}, format: InputCSV},
		{name: "unknown extension", input: InputSpec{Path: "export.dat"}, wantErr: true},
		{name: "no source", input: InputSpec{}, wantErr: true},
		{name: "html without url", input: InputSpec{Path: "page.html", Format: InputHTML}, format: InputHTML, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &PipelineDefinition{Name: "x", Input: tt.input}
			err := def.ValidateInput()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
			if tt.format != "" {
				assert.Equal(t, tt.format, def.InputFormat())
			}
		})
	}
}

func TestPipelineDefinition_Confine(t *testing.T) {
	tests := []struct {
		name    string
		def     PipelineDefinition
		allow   bool
		wantErr string
	}{
		{name: "relative paths", def: PipelineDefinition{Name: "crops", Input: InputSpec{Path: "crops/../crops.csv"}, Output: OutputSpec{Dir: "out/2024"}}},
		{name: "inline table", def: PipelineDefinition{Name: "crops"}},
		{name: "absolute input", def: PipelineDefinition{Name: "x", Input: InputSpec{Path: "/etc/passwd"}}, wantErr: "input.path"},
		{name: "parent input", def: PipelineDefinition{Name: "x", Input: InputSpec{Path: ".."}}, wantErr: "input.path"},
		{name: "escaping output", def: PipelineDefinition{Name: "x", Output: OutputSpec{Dir: "out/../../.."}}, wantErr: "output.dir"},
		{name: "dot output name", def: PipelineDefinition{Name: "x", Output: OutputSpec{Name: "."}}, wantErr: "output.name"},
		{name: "backslash output name", def: PipelineDefinition{Name: `..\x`}, wantErr: "output.name"},
		{name: "url refused", def: PipelineDefinition{Name: "x", Input: InputSpec{URL: "https://example.org"}}, wantErr: "input.url"},
		{name: "url allowed", def: PipelineDefinition{Name: "x", Input: InputSpec{URL: "https://example.org"}}, allow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			def := tt.def
			err := def.Confine(root, tt.allow)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, errors.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(def.OutputDir(), root))
			if def.Input.Path != "" {
				assert.Equal(t, filepath.Join(root, "crops.csv"), def.InputPath())
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("cod=FR")
	require.NoError(t, err)
	assert.Equal(t, &FilterSpec{Column: "cod", Equals: "FR"}, f)

	f, err = ParseFilter("note=a=b")
	require.NoError(t, err)
	assert.Equal(t, "a=b", f.Equals)

	_, err = ParseFilter("cod")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = ParseFilter("=FR")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestOutputDefaults(t *testing.T) {
	def := &PipelineDefinition{Name: "crops"}
	def.SetBaseDir("configs")
	assert.Equal(t, filepath.Join("configs", "out"), def.OutputDir())
	assert.Equal(t, "crops", def.OutputName())

	def.Input.Delimiter = ";"
	assert.Equal(t, ';', def.ReadOptions().Comma)
}

func TestBundledPipelines(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "pipelines", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			def, err := LoadPipeline(path)
			require.NoError(t, err)
			assert.FileExists(t, def.InputPath())
			assert.NotEmpty(t, def.Output.Formats)
		})
	}
}
