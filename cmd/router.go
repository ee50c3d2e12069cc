package main

import (
	"net/http"

	"github.com/angeloszaimis/typesense-client/internal/healthcheck"
	"github.com/angeloszaimis/typesense-client/internal/metrics"
)

func setupRouter(collector *metrics.Collector, checker *healthcheck.Checker) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", collector.PrometheusHandler())
	mux.HandleFunc("GET /metrics/snapshot", collector.Handler())
	mux.HandleFunc("GET /nodes", checker.Handler())

	return mux
}
