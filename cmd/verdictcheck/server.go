package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthServer exposes the last probe report and Prometheus metrics.
type healthServer struct {
	report *Report
	server *http.Server
}

func newHealthServer(report *Report, port int) *healthServer {
	mux := http.NewServeMux()
	s := &healthServer{
		report: report,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

func (s *healthServer) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *healthServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *healthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.report.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(s.report)
}
