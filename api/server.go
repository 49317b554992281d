// Package api serves the filtered and aggregated dataset over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"immo-scraper/metrics"
	"immo-scraper/services"
	"immo-scraper/storage"
	"immo-scraper/utils"
)

// Server answers dataset queries against one DatasetSource. The dataset is
// reloaded on every request so a fresh export is visible without a restart.
type Server struct {
	router     *mux.Router
	source     storage.DatasetSource
	aggregator *services.Aggregator
	logger     *utils.Logger
	metrics    *metrics.Manager
}

// NewServer wires the routes. m may be nil.
func NewServer(source storage.DatasetSource, logger *utils.Logger, m *metrics.Manager) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		source:     source,
		aggregator: services.NewAggregator(logger),
		logger:     logger,
		metrics:    m,
	}

	s.router.HandleFunc("/api/dataset", s.handleDataset).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[api] Listening on %s (source: %s)", addr, s.source.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
		s.logger.Info("[api] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := http.StatusOK
	defer func() { s.metrics.Query(strconv.Itoa(code), time.Since(start)) }()

	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		code = http.StatusBadRequest
		writeError(w, code, err)
		return
	}

	records, err := s.source.Load(r.Context())
	if err != nil {
		s.logger.Error("[api] Loading dataset from %s failed: %v", s.source.Name(), err)
		code = http.StatusInternalServerError
		writeError(w, code, err)
		return
	}

	view := s.aggregator.View(records, filters, s.source.Name())
	writeJSON(w, code, view)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// writeJSON encodes v before touching the response so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
