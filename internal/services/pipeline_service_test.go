package services

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	apperrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/infrastructure"
	"github.com/141286/SWG-introduction-to-R/internal/operations"
	"github.com/141286/SWG-introduction-to-R/internal/scraper"
	"github.com/141286/SWG-introduction-to-R/internal/shared/testutil"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// MockScraper is a mock for operations.TableScraper
type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Scrape(ctx context.Context, req scraper.Request) (domain.Table, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Table), args.Error(1)
}

const cropsCSV = `crop,year,yield
wheat,2018,3.1
maize,2018,7.4
wheat,2019,2.9
maize,2019,NA
wheat,2020,3.3
`

const cropsPipeline = `
name: crops
input: {path: crops.csv}
aggregate:
  group_by: [crop]
  measure: yield
  order_by: year
  stats: [average, median, min, max]
output:
  dir: out
  formats: [csv, parquet]
`

func loadCrops(t *testing.T, pipeline string) *config.PipelineDefinition {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crops.csv"), []byte(cropsCSV), 0644))
	path := filepath.Join(dir, "crops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipeline), 0644))

	def, err := config.LoadPipeline(path)
	require.NoError(t, err)
	return def
}

func newTelemetry(t *testing.T) (*infrastructure.OTelProviders, *infrastructure.PipelineMetrics) {
	t.Helper()
	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)
	return providers, metrics
}

func scrapeMetrics(t *testing.T, providers *infrastructure.OTelProviders) string {
	t.Helper()
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPipelineService_Run(t *testing.T) {
	def := loadCrops(t, cropsPipeline)
	logger, handler := testutil.NewTestLogger(t)
	providers, metrics := newTelemetry(t)

	svc := NewPipelineService(logger, WithTelemetry(providers.Tracer, metrics))
	result, err := svc.Run(context.Background(), def)
	require.NoError(t, err)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "crops", result.Pipeline)
	assert.Equal(t, operations.RunStatusCompleted, result.Status)
	assert.Len(t, result.Steps, 7)
	assert.Equal(t, 5, result.Table.Len())
	assert.Len(t, result.Outputs, 4)

	require.Len(t, result.Summaries, 2)
	wheat := result.Summaries[0]
	assert.Equal(t, []string{"wheat"}, wheat.Group)
	assert.InDelta(t, 3.1, wheat.Stat(domain.StatAverage).Num, 1e-9)
	assert.Equal(t, domain.Num(3.1), wheat.Stat(domain.StatMedian))
	assert.Equal(t, "2018 - 2020", wheat.Range)

	maize := result.Summaries[1]
	assert.Equal(t, 1, maize.Missing)
	assert.Equal(t, "7.4,NA", maize.Values)

	testutil.AssertNoErrors(t, handler)
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "pipeline run completed")
	assert.True(t, handler.ContainsAttr("run_id", result.RunID))

	// Runner records carry the run and their own component only.
	var runnerRecords int
	for _, rec := range handler.GetRecords() {
		if rec.Attrs["component"] != "runner" {
			continue
		}
		runnerRecords++
		assert.Equal(t, result.RunID, rec.Attrs["run_id"], rec.Message)
		assert.Equal(t, "crops", rec.Attrs["pipeline"], rec.Message)
	}
	assert.NotZero(t, runnerRecords)

	text := scrapeMetrics(t, providers)
	assert.Contains(t, text, "pipeline_runs_total")
	assert.Contains(t, text, `pipeline="crops"`)
	assert.Contains(t, text, "pipeline_rows_processed_total")
}

func TestPipelineService_RunFailure(t *testing.T) {
	def := loadCrops(t, "name: crops\ninput: {path: crops.csv}\naggregate: {group_by: [region], measure: yield, stats: [average]}\n")
	logger, handler := testutil.NewTestLogger(t)
	providers, metrics := newTelemetry(t)

	svc := NewPipelineService(logger, WithTelemetry(providers.Tracer, metrics))
	result, err := svc.Run(context.Background(), def)
	require.Error(t, err)
	require.NotNil(t, result)

	assert.ErrorIs(t, err, apperrors.ErrMissingColumn)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "region", appErr.Column())

	assert.Equal(t, operations.RunStatusFailed, result.Status)
	assert.Equal(t, operations.StepStatusFailed, result.Steps[4].Status)
	assert.Equal(t, operations.StepIDAggregate, result.Steps[4].ID)
	testutil.AssertLogContains(t, handler, slog.LevelError, "pipeline run failed")

	assert.Contains(t, scrapeMetrics(t, providers), `error_type="MISSING_COLUMN"`)
}

func TestPipelineService_RunInvalidDefinition(t *testing.T) {
	svc := NewPipelineService(nil)

	_, err := svc.Run(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	def := &config.PipelineDefinition{Name: "x", Output: config.OutputSpec{Formats: []string{"ods"}}}
	result, err := svc.Run(context.Background(), def)
	assert.Nil(t, result)
	require.Error(t, err)
}

func TestPipelineService_RunWithInput(t *testing.T) {
	def, err := config.ParsePipeline([]byte(`
name: inline
rules: [{kind: membership, output: eu, column: cod, members: [FR, DE], member_label: EU, other_label: Non-EU}]
`))
	require.NoError(t, err)

	input := domain.NewTable("cod")
	require.NoError(t, input.Append(domain.Str("FR")))
	require.NoError(t, input.Append(domain.Str("US")))
	require.NoError(t, input.Append(domain.Null()))

	result, err := NewPipelineService(nil).RunWithInput(context.Background(), def, input)
	require.NoError(t, err)

	assert.Equal(t, []string{"cod", "eu"}, result.Table.Columns)
	assert.Equal(t, []domain.Value{domain.Str("EU"), domain.Str("Non-EU"), domain.Str("Non-EU")}, result.Table.Column("eu"))
	assert.Equal(t, []string{"cod"}, input.Columns)
}

func TestPipelineService_HTMLInput(t *testing.T) {
	def, err := config.ParsePipeline([]byte(`
name: vessels
input: {url: "https://example.org/fleet", selector: "#registry"}
aggregate: {group_by: [flag], measure: tonnage, stats: [average]}
`))
	require.NoError(t, err)

	table, err := dataprocessing.TableFromRows([][]string{
		{"flag", "tonnage"},
		{"Malta", "500"},
		{"Malta", "700"},
	}, dataprocessing.ReadOptions{})
	require.NoError(t, err)

	scraperMock := new(MockScraper)
	scraperMock.On("Scrape", mock.Anything, mock.MatchedBy(func(req scraper.Request) bool {
		return req.URL == "https://example.org/fleet" && req.Selector == "#registry"
	})).Return(table, nil).Once()

	result, err := NewPipelineService(nil, WithScraper(scraperMock)).Run(context.Background(), def)
	require.NoError(t, err)
	scraperMock.AssertExpectations(t)

	require.Len(t, result.Summaries, 1)
	assert.Equal(t, domain.Num(600), result.Summaries[0].Stat(domain.StatAverage))
}

func TestPipelineService_RunTimeout(t *testing.T) {
	def, err := config.ParsePipeline([]byte("name: slow\ninput: {url: \"https://example.org/slow\"}\n"))
	require.NoError(t, err)

	scraperMock := new(MockScraper)
	scraperMock.On("Scrape", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(domain.Table{}, context.DeadlineExceeded)

	svc := NewPipelineService(nil, WithScraper(scraperMock), WithRunTimeout(20*time.Millisecond))
	result, err := svc.Run(context.Background(), def)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, operations.StepIDLoad, operations.FailedStep(err))
	assert.Equal(t, operations.RunStatusFailed, result.Status)
}

func TestPipelineService_Enrich(t *testing.T) {
	svc := NewPipelineService(nil)

	table := domain.NewTable("value", "litres")
	require.NoError(t, table.Append(domain.Num(10), domain.Num(4)))

	out, err := svc.Enrich(context.Background(), table, []dataprocessing.RuleSpec{
		{Kind: dataprocessing.KindRatio, Output: "price", Numerator: "value", Denominator: "litres"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Num(2.5), out.Rows[0].Get("price"))

	_, err = svc.Enrich(context.Background(), table, []dataprocessing.RuleSpec{
		{Kind: dataprocessing.KindRatio, Output: "price", Numerator: "value", Denominator: "volume"},
	})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "volume", appErr.Column())
	assert.Equal(t, 0, appErr.RuleIndex())
}

func TestPipelineService_Aggregate(t *testing.T) {
	table := domain.NewTable("flag", "tonnage")
	require.NoError(t, table.Append(domain.Str("Panama"), domain.Num(100)))
	require.NoError(t, table.Append(domain.Str("Panama"), domain.Null()))

	summaries, summaryTable, err := NewPipelineService(nil).Aggregate(context.Background(), table, dataprocessing.AggregateSpec{
		GroupBy: []string{"flag"},
		Measure: "tonnage",
		Stats:   []domain.StatName{domain.StatMin},
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.Num(100), summaries[0].Stat(domain.StatMin))
	assert.Equal(t, []string{"flag", "n", "missing", "min", "values"}, summaryTable.Columns)
	assert.Equal(t, "100,NA", summaryTable.Rows[0].Get("values").String())
}

func TestPipelineService_Inspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crops.csv")
	require.NoError(t, os.WriteFile(path, []byte(cropsCSV), 0644))

	svc := NewPipelineService(nil)
	table, schema, err := svc.Inspect(context.Background(), path, dataprocessing.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())

	info, ok := schema.Lookup("yield")
	require.True(t, ok)
	assert.Equal(t, domain.ColumnNumeric, info.Kind)
	assert.Equal(t, 1, info.Missing)

	info, _ = schema.Lookup("crop")
	assert.Equal(t, domain.ColumnText, info.Kind)

	_, _, err = svc.Inspect(context.Background(), filepath.Join(dir, "absent.csv"), dataprocessing.ReadOptions{})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}

func TestHealthService(t *testing.T) {
	hs := NewHealthService(nil)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, hs.Version().Version, status.Version)
	assert.Contains(t, status.Runtime, "uptime_seconds")
}
