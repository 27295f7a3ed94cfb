// Package api содержит HTTP API демона (только чтение).
//
// Структура:
//   - handler.go        — Handler с DI (store, ростер, история, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects
//   - sensor_handler.go — обработчики для /sensors и /healthz
//
// Управление датчиками идёт только через сокет зрителей, HTTP его не дублирует.
package api
