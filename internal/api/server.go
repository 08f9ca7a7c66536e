/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package api exposes the HTTP surface: the conversational chat endpoints,
// the SQL explorer, the prebuilt analytics reports and health checks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"landuse-agent/internal/agent"
	"landuse-agent/internal/analytics"
	"landuse-agent/internal/config"
	"landuse-agent/internal/database"
	"landuse-agent/internal/logging"
	"landuse-agent/internal/sqlcheck"
)

// Server bundles the HTTP handlers with their dependencies.
type Server struct {
	cfg      config.HTTPConfig
	llmInfo  config.LLMConfig
	runner   *agent.Runner
	sessions *agent.Store
	catalog  *database.Catalog
	executor *database.Executor
	reports  *analytics.Service
	gate     *sqlcheck.SharedOptions
	dialect  string

	httpServer *http.Server
}

// New builds the server and its route table. gate is the validation
// thresholds shared with the run_sql tool; both see config reloads together.
func New(cfg config.Config, runner *agent.Runner, sessions *agent.Store, catalog *database.Catalog,
	executor *database.Executor, reports *analytics.Service, gate *sqlcheck.SharedOptions) *Server {
	s := &Server{
		cfg:      cfg.HTTP,
		llmInfo:  cfg.LLM,
		runner:   runner,
		sessions: sessions,
		catalog:  catalog,
		executor: executor,
		reports:  reports,
		gate:     gate,
		dialect:  executor.Dialect(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("DELETE /api/v1/chat/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/v1/chat/status", s.handleChatStatus)

	mux.HandleFunc("POST /api/v1/explorer/query", s.handleExplorerQuery)
	mux.HandleFunc("POST /api/v1/explorer/export", s.handleExplorerExport)
	mux.HandleFunc("GET /api/v1/explorer/schema", s.handleExplorerSchema)
	mux.HandleFunc("GET /api/v1/explorer/templates", s.handleExplorerTemplates)
	mux.HandleFunc("GET /api/v1/explorer/stats", s.handleExplorerStats)

	mux.HandleFunc("GET /api/v1/analytics/overview", s.handleOverview)
	mux.HandleFunc("GET /api/v1/analytics/forest-transitions", s.handleForestTransitions)
	mux.HandleFunc("GET /api/v1/analytics/agricultural-impact", s.handleAgriculturalImpact)
	mux.HandleFunc("GET /api/v1/analytics/urbanization-sources", s.handleUrbanizationSources)
	mux.HandleFunc("GET /api/v1/analytics/scenario-comparison", s.handleScenarioComparison)
	mux.HandleFunc("GET /api/v1/analytics/geographic/{state}", s.handleGeographic)

	mux.HandleFunc("GET /api/v1/citation", s.handleCitation)

	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("http server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logging.Info("http server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err.Error())
	}
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
