package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/obradoria/budget-agent/internal/budget"
	"github.com/obradoria/budget-agent/internal/catalog"
	"github.com/obradoria/budget-agent/internal/db"
	"github.com/obradoria/budget-agent/internal/store"
	"github.com/obradoria/budget-agent/pkg/llm"
	"github.com/obradoria/budget-agent/pkg/spring"
)

// env holds the wired pipeline dependencies shared by the commands.
type env struct {
	Registry     *llm.Registry
	Spring       spring.Client
	Searcher     catalog.Searcher
	Orchestrator *budget.Orchestrator
	Store        store.Store

	pool db.Pool
}

func initEnv(ctx context.Context) (*env, error) {
	if cfg.DB.DatabaseURL == "" {
		return nil, eris.New("db.database_url not configured (catalog database required)")
	}

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, eris.Wrap(err, "connect catalog database")
	}

	registry := llm.NewRegistry(cfg.LLM)
	embedder := llm.NewOllamaEmbedder(cfg.Embed)
	searcher := catalog.NewPgSearcher(pool, embedder, cfg.Catalog.Floor)

	springClient := spring.NewClient(
		cfg.Spring.BaseURL,
		time.Duration(cfg.Spring.TimeoutSecs)*time.Second,
		spring.WithRateLimit(cfg.Spring.RatePerSecond),
	)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "open run store")
	}
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		st.Close()
		return nil, eris.Wrap(err, "migrate run store")
	}

	return &env{
		Registry:     registry,
		Spring:       springClient,
		Searcher:     searcher,
		Orchestrator: budget.NewOrchestrator(registry, springClient, searcher, cfg),
		Store:        st,
		pool:         pool,
	}, nil
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
