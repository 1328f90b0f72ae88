package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angeloszaimis/proxee/internal/httpserver"
	"github.com/angeloszaimis/proxee/internal/metrics"
)

func setupRouter(log *slog.Logger, metricsCollector *metrics.Collector, route string, allowedIPs []string) (*mux.Router, error) {
	allowlist, err := httpserver.NewAllowlist(log, allowedIPs)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(allowlist.Middleware)
	router.Handle(route, metricsCollector.Handler()).Methods(http.MethodGet, http.MethodHead)

	return router, nil
}
