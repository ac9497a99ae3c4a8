package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/budget"
	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the budget generation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(e),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", handleHealth(e))
	r.Get("/v1/providers", handleProviders(e))
	r.Post("/v1/budgets", handleGenerate(e))
	r.Post("/v1/budgets/stream", handleGenerateStream(e))
	r.Get("/v1/runs", handleListRuns(e))
	r.Get("/v1/runs/{id}", handleGetRun(e))

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// generateRequest is the body of both generation endpoints.
type generateRequest struct {
	Text        string `json:"text"`
	Provider    string `json:"provider,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}

func handleHealth(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		deps := map[string]string{
			"catalog": "ok",
			"spring":  "ok",
		}
		healthy := true
		if err := e.Searcher.Ping(ctx); err != nil {
			deps["catalog"] = err.Error()
			healthy = false
		}
		if err := e.Spring.Ping(ctx); err != nil {
			deps["spring"] = err.Error()
			healthy = false
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status":        state,
			"dependencies":  deps,
			"llm_providers": e.Registry.Available(),
		})
	}
}

func handleProviders(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"default":   e.Registry.Default(),
			"available": e.Registry.Available(),
		})
	}
}

func handleGenerate(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		run, err := e.Store.CreateRun(r.Context(), req.Text, req.Provider)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "create run: "+err.Error())
			return
		}
		e.Store.MarkRunning(r.Context(), run.ID)

		b, err := e.Orchestrator.Generate(r.Context(), budget.Input{
			Text:        req.Text,
			Provider:    req.Provider,
			ProjectName: req.ProjectName,
		})
		if err != nil {
			if ferr := e.Store.FailRun(r.Context(), run.ID, err.Error()); ferr != nil {
				zap.L().Warn("failed to record run failure", zap.Error(ferr))
			}
			writeError(w, statusFor(err), err.Error())
			return
		}

		if serr := e.Store.CompleteRun(r.Context(), run.ID, b); serr != nil {
			zap.L().Warn("failed to record run result", zap.Error(serr))
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": run.ID, "budget": b})
	}
}

// handleGenerateStream delivers progress events over SSE. The pipeline run is
// detached from the request context: a client disconnect stops delivery but
// the run completes and the outcome is still recorded.
func handleGenerateStream(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		runCtx := context.WithoutCancel(r.Context())

		run, err := e.Store.CreateRun(runCtx, req.Text, req.Provider)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "create run: "+err.Error())
			return
		}
		e.Store.MarkRunning(runCtx, run.ID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Run-ID", run.ID)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events := e.Orchestrator.Stream(runCtx, budget.Input{
			Text:        req.Text,
			Provider:    req.Provider,
			ProjectName: req.ProjectName,
		})

		clientGone := r.Context().Done()
		connected := true
		for ev := range events {
			recordTerminal(runCtx, e.Store, run.ID, ev)

			if !connected {
				continue
			}
			select {
			case <-clientGone:
				connected = false
				zap.L().Info("stream client disconnected, run continues",
					zap.String("run_id", run.ID))
				continue
			default:
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Stage, payload)
			flusher.Flush()
		}
	}
}

// recordTerminal persists the outcome when ev is a terminal event.
func recordTerminal(ctx context.Context, st store.Store, runID string, ev model.ProgressEvent) {
	switch ev.Stage {
	case model.StageCompleted:
		if b, ok := ev.Data.(*model.Budget); ok {
			if err := st.CompleteRun(ctx, runID, b); err != nil {
				zap.L().Warn("failed to record run result", zap.Error(err))
			}
		}
	case model.StageFailed:
		if err := st.FailRun(ctx, runID, ev.Message); err != nil {
			zap.L().Warn("failed to record run failure", zap.Error(err))
		}
	}
}

func handleListRuns(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		runs, err := e.Store.ListRuns(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleGetRun(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := e.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

// statusFor maps pipeline failures to HTTP status codes.
func statusFor(err error) int {
	var ve *budget.ValidationError
	var ue *budget.UpstreamTimeoutError
	var ee *budget.ExtractionError
	var se *budget.StructureResolutionError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		return http.StatusGatewayTimeout
	case errors.As(err, &ee), errors.As(err, &se):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
