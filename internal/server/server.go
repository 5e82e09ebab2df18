// Package server exposes a thin HTTP wrapper for triggering translation
// runs and inspecting their results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/semabridge/internal/engine"
	"github.com/leapstack-labs/semabridge/internal/state"
)

// Server routes run-trigger and inspection requests to the engine.
type Server struct {
	eng    *engine.Engine
	logger *slog.Logger
	addr   string
}

// New creates a server for the given engine.
func New(eng *engine.Engine, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{eng: eng, logger: logger, addr: addr}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleTriggerRun)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/models", s.handleListModels)
		r.Get("/models/{name}", s.handleGetModel)
		r.Get("/metrics/deferred", s.handleDeferredMetrics)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type triggerRequest struct {
	Environment string   `json:"environment"`
	Select      []string `json:"select"`
	Downstream  bool     `json:"downstream"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if _, err := s.eng.Discover(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var result *engine.RunResult
	var err error
	if len(req.Select) > 0 {
		result, err = s.eng.RunSelected(r.Context(), req.Environment, req.Select, req.Downstream)
	} else {
		result, err = s.eng.Run(r.Context(), req.Environment)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run":        result.Run,
		"translated": result.Translated,
		"failed":     len(result.ModelErrors),
		"deferred":   len(result.Deferred),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.eng.Store().GetRun(chi.URLParam(r, "id"))
	if errors.Is(err, state.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models, err := s.eng.Store().ListPublishedModels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	art, err := s.eng.Store().GetArtifact(chi.URLParam(r, "name"))
	if errors.Is(err, state.ErrNotFound) {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (s *Server) handleDeferredMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics, err := s.eng.Store().ListDeferredMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
