// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange и временных очередей подписчиков
//   - publisher.go  — публикация снапшотов
//   - mirror.go     — неблокирующее зеркало снапшотов для цикла опроса
//   - consumer.go   — потребление сообщений (команда mirror в CLI)
//
// Типы сообщений:
//   - telemetry.snapshot — снапшот показаний за один тик
//
// Exchanges:
//   - sensorhub.snapshots (fanout)
//
// Зеркало опционально: без RABBITMQ_URL сервис работает без него.
package mq
