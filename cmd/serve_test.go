package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obradoria/budget-agent/internal/budget"
	"github.com/obradoria/budget-agent/internal/config"
	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/internal/store"
	"github.com/obradoria/budget-agent/pkg/llm"
	"github.com/obradoria/budget-agent/pkg/spring"
)

type stubLLM struct {
	responses []string
	calls     int
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(context.Context, llm.Request) (*llm.Response, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return &llm.Response{Content: s.responses[idx], Provider: "stub"}, nil
}

func (s *stubLLM) Ping(context.Context) error { return nil }

type stubProviders struct{ client llm.Client }

func (s stubProviders) Get(string) (llm.Client, error) { return s.client, nil }

type stubSearcher struct{ candidates []model.Candidate }

func (s stubSearcher) Search(context.Context, string, int) ([]model.Candidate, error) {
	return s.candidates, nil
}

func (s stubSearcher) Ping(context.Context) error { return nil }

type stubSpring struct {
	base   *spring.BaseBudget
	stages []spring.BaseStage
	price  *spring.CompositionPrice
}

func (s stubSpring) FetchBaseBudget(context.Context, string) (*spring.BaseBudget, error) {
	return s.base, nil
}

func (s stubSpring) FetchStages(context.Context, int) ([]spring.BaseStage, error) {
	return s.stages, nil
}

func (s stubSpring) PriceFor(context.Context, string, string, int, int) (*spring.CompositionPrice, error) {
	return s.price, nil
}

func (s stubSpring) CreateProject(context.Context, string, string) (*spring.CreatedRef, error) {
	return &spring.CreatedRef{Code: 1}, nil
}

func (s stubSpring) CreateBudget(context.Context, string, string, int) (*spring.CreatedRef, error) {
	return &spring.CreatedRef{Code: 2}, nil
}

func (s stubSpring) CreateStage(context.Context, int, string, string) (*spring.CreatedRef, error) {
	return &spring.CreatedRef{Code: 3}, nil
}

func (s stubSpring) AddStageItems(context.Context, int, []spring.StageItemPayload) error {
	return nil
}

func (s stubSpring) Ping(context.Context) error { return nil }

const stubExtraction = `{"quantity": 1, "building_type": "casa", "standard": "minimo", "state": "SP", "reference_month": 3, "reference_year": 2025}`

func newTestEnv(t *testing.T, client llm.Client, sc spring.Client, searcher stubSearcher) *env {
	t.Helper()

	testCfg := &config.Config{
		Catalog: config.Thresholds{High: 0.75, Medium: 0.60, Floor: 0.50},
		Match:   config.MatchConfig{TopK: 5, Concurrency: 4},
		Pricing: config.PricingConfig{MaxLookbackMonths: 24},
		Period:  config.PeriodConfig{EarliestYear: 2020, LatestYear: 2030},
		LLM:     config.LLMConfig{Provider: "ollama"},
	}

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	return &env{
		Registry:     llm.NewRegistry(testCfg.LLM),
		Spring:       sc,
		Searcher:     searcher,
		Orchestrator: budget.NewOrchestrator(stubProviders{client}, sc, searcher, testCfg),
		Store:        st,
	}
}

func happyPathEnv(t *testing.T) *env {
	sc := stubSpring{
		base: &spring.BaseBudget{Code: 12},
		stages: []spring.BaseStage{
			{Code: 1, Name: "Fundação", Items: []spring.BaseItem{
				{Code: 10, Name: "Escavação", Quantity: 5, Unit: "M3"},
			}},
		},
		price: &spring.CompositionPrice{CompositionCode: "93358", CostUnburdened: 55.20},
	}
	searcher := stubSearcher{candidates: []model.Candidate{
		{Code: "93358", Name: "ESCAVACAO MANUAL", Similarity: 0.88},
	}}
	return newTestEnv(t, &stubLLM{responses: []string{stubExtraction}}, sc, searcher)
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(happyPathEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestProvidersEndpoint(t *testing.T) {
	router := newRouter(happyPathEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Default   string   `json:"default"`
		Available []string `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ollama", body.Default)
	assert.Contains(t, body.Available, "ollama")
}

func TestGenerateEndpoint(t *testing.T) {
	e := happyPathEnv(t)
	router := newRouter(e)

	body := strings.NewReader(`{"text": "uma casa mínima em SP, março de 2025"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/budgets", body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		RunID  string        `json:"run_id"`
		Budget *model.Budget `json:"budget"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Budget)
	assert.Equal(t, model.ModeBase, resp.Budget.Mode)
	assert.Equal(t, 55.20*5, resp.Budget.GrandTotal)

	// The run record reflects the outcome.
	run, err := e.Store.GetRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestGenerateEndpointRequiresText(t *testing.T) {
	router := newRouter(happyPathEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/budgets", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateEndpointExtractionFailure(t *testing.T) {
	e := newTestEnv(t, &stubLLM{responses: []string{"no json"}}, stubSpring{}, stubSearcher{})
	router := newRouter(e)

	body := strings.NewReader(`{"text": "???"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/budgets", body))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	runs, err := e.Store.ListRuns(context.Background(), store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStreamEndpoint(t *testing.T) {
	e := happyPathEnv(t)
	router := newRouter(e)

	body := strings.NewReader(`{"text": "uma casa mínima em SP"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/budgets/stream", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	assert.Contains(t, out, "event: received")
	assert.Contains(t, out, "event: completed")
	assert.Contains(t, out, `"seq":1`)

	runID := rec.Header().Get("X-Run-ID")
	require.NotEmpty(t, runID)
	run, err := e.Store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestListAndGetRuns(t *testing.T) {
	e := happyPathEnv(t)
	router := newRouter(e)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs":[]`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&budget.ValidationError{Reason: "x"}))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&budget.UpstreamTimeoutError{Service: "s"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&budget.ExtractionError{Provider: "p"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
