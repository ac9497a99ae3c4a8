// Package spring provides a client for the Obradoria budgeting service, a
// Spring Boot API that holds base budgets, SINAPI composition prices and
// persisted budgets.
package spring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/obradoria/budget-agent/internal/resilience"
)

// Client defines the budgeting service operations used by the pipeline.
type Client interface {
	// FetchBaseBudget looks up the base budget for a construction standard
	// (MINIMO, BASICO). Returns (nil, nil) when no base budget exists.
	FetchBaseBudget(ctx context.Context, standard string) (*BaseBudget, error)
	// FetchStages returns the stages and items of a budget.
	FetchStages(ctx context.Context, budgetCode int) ([]BaseStage, error)
	// PriceFor looks up the price of a composition for a state and period.
	// Returns (nil, nil) when no price exists for that exact period.
	PriceFor(ctx context.Context, compositionCode, state string, month, year int) (*CompositionPrice, error)
	// CreateProject creates a construction project.
	CreateProject(ctx context.Context, name, description string) (*CreatedRef, error)
	// CreateBudget creates a budget, optionally attached to a project.
	CreateBudget(ctx context.Context, name, description string, projectCode int) (*CreatedRef, error)
	// CreateStage creates a stage under a budget.
	CreateStage(ctx context.Context, budgetCode int, name, description string) (*CreatedRef, error)
	// AddStageItems appends items to a stage.
	AddStageItems(ctx context.Context, stageCode int, items []StageItemPayload) error
	// Ping reports whether the service is reachable.
	Ping(ctx context.Context) error
}

// BaseBudget is a persisted reference budget for one construction standard.
type BaseBudget struct {
	Code        int    `json:"codigo"`
	Name        string `json:"nome"`
	Description string `json:"descricao"`
}

// BaseItem is one line of a base budget stage.
type BaseItem struct {
	Code        int     `json:"codigo"`
	Name        string  `json:"nome"`
	Description string  `json:"descricao"`
	Quantity    float64 `json:"quantidade"`
	Unit        string  `json:"unidade"`
	UnitCost    float64 `json:"custoUnitario"`
}

// BaseStage groups base budget items under one construction phase.
type BaseStage struct {
	Code        int        `json:"codigo"`
	Name        string     `json:"nome"`
	Description string     `json:"descricao"`
	Items       []BaseItem `json:"itens"`
}

// CompositionPrice is the SINAPI price of a composition for one state and
// reference period. Unburdened cost is preferred; burdened is the fallback.
type CompositionPrice struct {
	CompositionCode string  `json:"codigoComposicao"`
	CostUnburdened  float64 `json:"custoSemDesoneracao"`
	CostBurdened    float64 `json:"custoComDesoneracao"`
}

// UnitCost returns the preferred unit cost for pricing.
func (p CompositionPrice) UnitCost() float64 {
	if p.CostUnburdened > 0 {
		return p.CostUnburdened
	}
	return p.CostBurdened
}

// CreatedRef identifies an entity created through the service.
type CreatedRef struct {
	Code int `json:"codigo"`
}

// StageItemPayload is the wire format for appending an item to a stage.
type StageItemPayload struct {
	Name            string  `json:"nome"`
	Description     string  `json:"descricao"`
	Quantity        float64 `json:"quantidade"`
	UnitCost        float64 `json:"custoUnitario"`
	CompositionCode int     `json:"codigoComposicao,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a budgeting service client.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("spring", "request")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes one request with rate limiting and a single bounded retry on
// transient failures. A 404 is returned as (nil, 404, nil) so callers can
// map it to absence.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, int, error) {
	type result struct {
		body   []byte
		status int
	}

	res, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (result, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return result{}, err
			}
		}

		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return result{}, eris.Wrap(err, "spring: marshal payload")
			}
			body = bytes.NewReader(data)
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return result{}, eris.Wrap(err, "spring: build request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return result{}, eris.Wrapf(err, "spring: %s %s", method, path)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, eris.Wrap(err, "spring: read response body")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return result{}, resilience.NewTransientError(
				fmt.Errorf("spring: %s %s returned %d: %s", method, path, resp.StatusCode, data),
				resp.StatusCode,
			)
		}

		return result{body: data, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.body, res.status, nil
}

func (c *httpClient) FetchBaseBudget(ctx context.Context, standard string) (*BaseBudget, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/orcamentos/base/"+url.PathEscape(standard), nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("spring: base budget lookup returned %d: %s", status, body)
	}

	var out BaseBudget
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "spring: decode base budget")
	}
	return &out, nil
}

func (c *httpClient) FetchStages(ctx context.Context, budgetCode int) ([]BaseStage, error) {
	q := url.Values{"codigoOrcamento": {strconv.Itoa(budgetCode)}}
	body, status, err := c.do(ctx, http.MethodGet, "/etapas-orcamento", q, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("spring: stage lookup returned %d: %s", status, body)
	}

	var out []BaseStage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "spring: decode stages")
	}
	return out, nil
}

func (c *httpClient) PriceFor(ctx context.Context, compositionCode, state string, month, year int) (*CompositionPrice, error) {
	q := url.Values{
		"codigoComposicao": {compositionCode},
		"uf":               {state},
		"mes":              {strconv.Itoa(month)},
		"ano":              {strconv.Itoa(year)},
	}
	body, status, err := c.do(ctx, http.MethodGet, "/preco-composicoes/buscar", q, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("spring: price lookup returned %d: %s", status, body)
	}

	var out CompositionPrice
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "spring: decode price")
	}
	return &out, nil
}

func (c *httpClient) CreateProject(ctx context.Context, name, description string) (*CreatedRef, error) {
	payload := map[string]string{"nome": name, "descricao": description}
	return c.create(ctx, "/obras", payload, "project")
}

func (c *httpClient) CreateBudget(ctx context.Context, name, description string, projectCode int) (*CreatedRef, error) {
	payload := map[string]any{
		"nome":      name,
		"descricao": description,
	}
	if projectCode > 0 {
		payload["codigoObra"] = projectCode
	}
	return c.create(ctx, "/orcamentos", payload, "budget")
}

func (c *httpClient) CreateStage(ctx context.Context, budgetCode int, name, description string) (*CreatedRef, error) {
	payload := map[string]any{
		"codigoOrcamento": budgetCode,
		"nome":            name,
		"descricao":       description,
	}
	return c.create(ctx, "/etapas-orcamento", payload, "stage")
}

func (c *httpClient) create(ctx context.Context, path string, payload any, kind string) (*CreatedRef, error) {
	body, status, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, eris.Errorf("spring: create %s returned %d: %s", kind, status, body)
	}

	var out CreatedRef
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrapf(err, "spring: decode created %s", kind)
	}
	return &out, nil
}

func (c *httpClient) AddStageItems(ctx context.Context, stageCode int, items []StageItemPayload) error {
	path := fmt.Sprintf("/etapas-orcamento/%d/itens", stageCode)
	body, status, err := c.do(ctx, http.MethodPost, path, nil, items)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return eris.Errorf("spring: add stage items returned %d: %s", status, body)
	}
	return nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orcamentos/base/MINIMO", nil)
	if err != nil {
		return eris.Wrap(err, "spring: build ping request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "spring: ping")
	}
	defer resp.Body.Close()
	// 404 still proves the service is up.
	if resp.StatusCode >= http.StatusInternalServerError {
		return eris.Errorf("spring: ping returned %d", resp.StatusCode)
	}
	return nil
}
