package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	apperrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/shared/testutil"
)

func stubbed(t *testing.T, raw rawTable, fetchErr error) (*Scraper, *testutil.BufferedSlogHandler, *[]string) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	s := New(Config{Headless: true}, logger)
	var scripts []string
	s.fetch = func(_ context.Context, _ string, js string, out *rawTable) error {
		scripts = append(scripts, js)
		*out = raw
		return fetchErr
	}
	return s, handler, &scripts
}

func TestScrape_ConvertsRows(t *testing.T) {
	s, handler, scripts := stubbed(t, rawTable{Found: true, Rows: [][]string{
		{"Country", "Wine", "Litres"},
		{"France", "Red", "1,200"},
		{"Chile", "White", "N/A"},
	}}, nil)

	tbl, err := s.Scrape(context.Background(), Request{URL: "http://example.test/imports", Index: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"Country", "Wine", "Litres"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 1200.0, tbl.Rows[0].Get("Litres").Num)
	assert.True(t, tbl.Rows[1].Get("Litres").IsMissing())

	require.Len(t, *scripts, 1)
	assert.Contains(t, (*scripts)[0], `document.querySelectorAll("table")`)
	assert.Contains(t, (*scripts)[0], "tables[1]")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "scraped table")
}

func TestScrape_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		raw      rawTable
		fetchErr error
		wantType apperrors.ErrorType
	}{
		{name: "no url", req: Request{}, wantType: apperrors.ErrTypeValidation},
		{name: "negative index", req: Request{URL: "http://x", Index: -1}, wantType: apperrors.ErrTypeValidation},
		{name: "page failure", req: Request{URL: "http://x"}, fetchErr: errors.New("net::ERR_NAME_NOT_RESOLVED"), wantType: apperrors.ErrTypeNetwork},
		{name: "no such table", req: Request{URL: "http://x", Selector: "table.data"}, raw: rawTable{Found: false}, wantType: apperrors.ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := stubbed(t, tt.raw, tt.fetchErr)
			_, err := s.Scrape(context.Background(), tt.req)
			require.Error(t, err)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, appErr.Type)
		})
	}
}

func TestScrape_CancelledWhileWaiting(t *testing.T) {
	s, _, scripts := stubbed(t, rawTable{Found: true}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scrape(ctx, Request{URL: "http://x"})
	assert.Error(t, err)
	assert.Empty(t, *scripts)
}

func TestExtractScript_QuotesSelector(t *testing.T) {
	js := extractScript(`table[summary="imports"]`, 0)
	assert.True(t, strings.Contains(js, `"table[summary=\"imports\"]"`))
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default().Scraper
	cfg.UserAgent = "wrangle-test"

	got := ConfigFrom(cfg)
	assert.Equal(t, Config{
		Headless:          true,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: 1,
		UserAgent:         "wrangle-test",
	}, got)
}
