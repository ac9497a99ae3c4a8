package spring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestFetchBaseBudget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orcamentos/base/MINIMO", r.URL.Path)
		json.NewEncoder(w).Encode(BaseBudget{Code: 12, Name: "Base minimo"})
	})

	b, err := c.FetchBaseBudget(context.Background(), "MINIMO")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 12, b.Code)
	assert.Equal(t, "Base minimo", b.Name)
}

func TestFetchBaseBudgetNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	b, err := c.FetchBaseBudget(context.Background(), "ALTO")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestFetchStages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/etapas-orcamento", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("codigoOrcamento"))
		json.NewEncoder(w).Encode([]BaseStage{
			{Code: 1, Name: "Fundacao", Items: []BaseItem{
				{Code: 10, Name: "Escavacao", Quantity: 2.5, Unit: "m3"},
			}},
		})
	})

	stages, err := c.FetchStages(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, "Fundacao", stages[0].Name)
	require.Len(t, stages[0].Items, 1)
	assert.Equal(t, 2.5, stages[0].Items[0].Quantity)
}

func TestPriceFor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preco-composicoes/buscar", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "87245", q.Get("codigoComposicao"))
		assert.Equal(t, "SP", q.Get("uf"))
		assert.Equal(t, "3", q.Get("mes"))
		assert.Equal(t, "2025", q.Get("ano"))
		json.NewEncoder(w).Encode(CompositionPrice{
			CompositionCode: "87245",
			CostUnburdened:  41.37,
			CostBurdened:    43.90,
		})
	})

	p, err := c.PriceFor(context.Background(), "87245", "SP", 3, 2025)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 41.37, p.UnitCost())
}

func TestPriceForNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	p, err := c.PriceFor(context.Background(), "87245", "SP", 3, 2025)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUnitCostFallsBackToBurdened(t *testing.T) {
	p := CompositionPrice{CostUnburdened: 0, CostBurdened: 19.5}
	assert.Equal(t, 19.5, p.UnitCost())
}

func TestCreateBudgetAndStageItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orcamentos":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Casa 70m2", payload["nome"])
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(CreatedRef{Code: 77})
		case "/etapas-orcamento/5/itens":
			var items []StageItemPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&items))
			require.Len(t, items, 1)
			assert.Equal(t, "Alvenaria", items[0].Name)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("{}"))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	ref, err := c.CreateBudget(context.Background(), "Casa 70m2", "gerado", 0)
	require.NoError(t, err)
	assert.Equal(t, 77, ref.Code)

	err = c.AddStageItems(context.Background(), 5, []StageItemPayload{
		{Name: "Alvenaria", Quantity: 120, UnitCost: 38.2},
	})
	require.NoError(t, err)
}

func TestTransientServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(BaseBudget{Code: 3})
	})

	b, err := c.FetchBaseBudget(context.Background(), "MINIMO")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 3, b.Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchBaseBudget(context.Background(), "MINIMO")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	assert.NoError(t, c.Ping(context.Background()))
}
