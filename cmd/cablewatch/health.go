package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/cablewatch/internal/connection"
	"github.com/rickgao/cablewatch/internal/metrics"
)

// statsSource is satisfied by *connection.Conn.
type statsSource interface {
	Stats() connection.Stats
}

// createHealthHandler serves /health and the Prometheus metrics path.
func createHealthHandler(conn statsSource, reg *prometheus.Registry, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, metrics.Handler(reg))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := conn.Stats()

		health := struct {
			Status     string           `json:"status"`
			Connection connection.Stats `json:"connection"`
		}{
			Status:     "healthy",
			Connection: stats,
		}

		switch {
		case !stats.Monitor.Running:
			health.Status = "unhealthy"
		case !stats.Connected:
			health.Status = "degraded"
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
