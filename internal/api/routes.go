package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Служебные
	mux.Handle("GET /healthz", chain(http.HandlerFunc(h.Health)))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Sensors
	mux.Handle("GET /api/v1/sensors", chain(http.HandlerFunc(h.ListSensors)))
	mux.Handle("GET /api/v1/sensors/{addr}", chain(http.HandlerFunc(h.GetSensor)))
	mux.Handle("GET /api/v1/sensors/{addr}/readings", chain(http.HandlerFunc(h.ListReadings)))
	mux.Handle("GET /api/v1/sensors/{addr}/stats", chain(http.HandlerFunc(h.GetStats)))
}
