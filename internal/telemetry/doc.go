// Package telemetry обеспечивает наблюдаемость sensorhub.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики конвейера
//
// Демон отдаёт метрики на /metrics, CLI пишет только логи.
package telemetry
