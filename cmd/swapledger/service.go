package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"swapledger/internal/indexer"
)

// service serializes ticks with the HTTP read paths.
type service struct {
	mu     sync.Mutex
	coord  *indexer.Coordinator
	logger *zap.Logger
}

func newService(coord *indexer.Coordinator, logger *zap.Logger) *service {
	return &service{coord: coord, logger: logger}
}

func (s *service) tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.Tick(ctx)
}

func (s *service) status() indexer.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord.Status()
}

func (s *service) routes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.status().Fatal != "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.status()); err != nil {
			s.logger.Warn("encode status", zap.Error(err))
		}
	})
	mux.HandleFunc("/admin/clear-fatal", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		s.coord.ClearFatal()
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}
