package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elonfeng/asoradar/pkg/aso"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	suggestOpts aso.SuggestOptions
}

func (f *fakeAnalyzer) Store() aso.Store { return aso.GooglePlay }

func (f *fakeAnalyzer) AnalyzeKeyword(_ context.Context, kw string) (*opportunity.ScoreResult, error) {
	switch strings.TrimSpace(kw) {
	case "":
		return nil, aso.ErrEmptyKeyword
	case "down":
		return nil, errors.New("search failed after 3 attempts: status 503")
	}
	return &opportunity.ScoreResult{
		Difficulty: opportunity.Difficulty{Score: 4.2},
		Traffic:    opportunity.Traffic{Score: 6.1},
	}, nil
}

func (f *fakeAnalyzer) MarketOpportunity(_ context.Context, kw string) (*aso.MarketReport, error) {
	return &aso.MarketReport{Keyword: kw, Opportunity: 7.3, Saturation: 2}, nil
}

func (f *fakeAnalyzer) Suggest(_ context.Context, opts aso.SuggestOptions) ([]string, error) {
	f.suggestOpts = opts
	return []string{"clock", "timer"}, nil
}

func (f *fakeAnalyzer) AppKeywords(_ context.Context, appID string) ([]string, error) {
	if appID != "chess.clock" {
		return nil, fmt.Errorf("app %s: %w", appID, market.ErrNotFound)
	}
	return []string{"chess", "clock"}, nil
}

func (f *fakeAnalyzer) CompareApps(_ context.Context, a, b string) (opportunity.Gap, error) {
	return opportunity.Gap{Advantages: []string{"Higher rating than competitors"}, Disadvantages: []string{}, Opportunities: []string{}}, nil
}

func newTestServer(t *testing.T, opts Options) (*fakeAnalyzer, http.Handler) {
	t.Helper()
	log, _ := test.NewNullLogger()
	opts.Logger = log
	opts.Batch.Pause = -1
	f := &fakeAnalyzer{}
	return f, New(f, opts).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "gplay", body["store"])
}

func TestScore(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec, body := do(t, h, http.MethodGet, "/api/v1/keywords/chess%20clock/score", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.2, body["difficulty"].(map[string]any)["score"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/keywords/%20/score", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/api/v1/keywords/down/score", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "after 3 attempts")
}

func TestOpportunity(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/v1/keywords/sudoku/opportunity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sudoku", body["keyword"])
	assert.Equal(t, 7.3, body["opportunity"])
}

func TestBatch(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec, body := do(t, h, http.MethodPost, "/api/v1/keywords/batch", `{"keywords": ["chess", "down", "sudoku"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["count"])
	assert.Equal(t, []any{"down"}, body["failed"])
	assert.Contains(t, body["data"], "chess")

	rec, _ = do(t, h, http.MethodPost, "/api/v1/keywords/batch", `{"keywords": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/keywords/batch", `{"keywords": ["ok", ""]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestions(t *testing.T) {
	f, h := newTestServer(t, Options{})

	rec, body := do(t, h, http.MethodPost, "/api/v1/suggestions",
		`{"strategy": "keywords", "keywords": ["chess"], "num": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"clock", "timer"}, body["data"])
	assert.Equal(t, opportunity.StrategyKeywords, f.suggestOpts.Strategy)
	assert.Equal(t, []string{"chess"}, f.suggestOpts.Keywords)
	assert.Equal(t, 5, f.suggestOpts.Num)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/suggestions", `{"strategy": "random"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCombinations(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec, body := do(t, h, http.MethodPost, "/api/v1/combinations", `{"keywords": ["chess", "clock", "free"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chess clock free", body["data"].([]any)[0])
	assert.Equal(t, 6.0, body["count"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/combinations", `{"keywords": ["chess", "clock"], "maxLength": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"chess", "clock"}, body["data"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/combinations", `{"keywords": ["chess tournament clock", "timer for pros"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chess tournament clock timer for pros", body["data"].([]any)[0])
}

func TestAppKeywords(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec, body := do(t, h, http.MethodGet, "/api/v1/apps/chess.clock/keywords", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"chess", "clock"}, body["data"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/apps/unknown/keywords", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompare(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec, body := do(t, h, http.MethodGet, "/api/v1/apps/compare?a=mine&b=theirs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Higher rating than competitors"}, body["advantages"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/apps/compare?a=mine", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	_, h := newTestServer(t, Options{RateLimit: 1})

	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		rec, _ := do(t, h, http.MethodGet, "/health", "")
		codes[rec.Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t, Options{AllowedOrigins: []string{"https://aso.example"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://aso.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://aso.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec, _ := do(t, h, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
}
