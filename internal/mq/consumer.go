package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/sensorhub/internal/telemetry"
)

// SnapshotHandler обрабатывает декодированный снапшот.
// Ошибка означает nack без повторной доставки.
type SnapshotHandler func(ctx context.Context, snap SnapshotPayload) error

// QueueDeclarer объявляет очередь и возвращает её имя.
type QueueDeclarer func(ctx context.Context, conn *Connection) (string, error)

// Consumer читает снапшоты из очереди зеркала.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	declare  QueueDeclarer
	handle   SnapshotHandler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя очереди. Игнорируется, если задан Declare.
	Queue string

	// Declare вызывается перед каждой подпиской. Нужен для
	// эксклюзивных очередей, которые исчезают вместе с соединением.
	Declare QueueDeclarer

	Handler  SnapshotHandler
	Prefetch int // default: 1
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   telemetry.WithComponent(logger, "mirror-consumer"),
		queue:    cfg.Queue,
		declare:  cfg.Declare,
		handle:   cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет снапшоты до отмены ctx.
//
// Ошибка первой подписки возвращается сразу. Дальнейшие разрывы Run
// не прерывают: подписка восстанавливается после переподключения.
func (c *Consumer) Run(ctx context.Context) error {
	for first := true; ; first = false {
		// Берём до подписки, чтобы не пропустить переподключение
		up := c.conn.reconnected()

		deliveries, err := c.subscribe(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && first:
			return err
		case err != nil:
			c.logger.Warn("subscribe failed, waiting for reconnect", "queue", c.queue, "error", err)
		default:
			c.logger.Info("consumer started", "queue", c.queue)
			c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries closed, waiting for reconnect", "queue", c.queue)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-up:
		}
	}
}

func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	if c.declare != nil {
		name, err := c.declare(ctx, c.conn)
		if err != nil {
			return nil, err
		}
		c.queue = name
	}

	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		d, err := ch.Consume(
			c.queue, // queue
			"",      // consumer tag (сгенерирует клиент)
			false,   // auto-ack
			false,   // exclusive
			false,   // no-local
			false,   // no-wait
			nil,     // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.queue, err)
		}
		deliveries = d
		return nil
	})

	return deliveries, err
}

// drain обрабатывает доставки, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery декодирует снапшот и подтверждает доставку.
// Снапшоты не переигрываются: следующий всё равно новее.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	snap, err := DecodeSnapshot(d.Body)
	if err != nil {
		telemetry.MirrorDeliveries.WithLabelValues("undecodable").Inc()
		c.logger.Warn("dropping undecodable snapshot", "queue", c.queue, "error", err)
		d.Nack(false, false)
		return
	}

	if err := c.handle(ctx, snap); err != nil {
		telemetry.MirrorDeliveries.WithLabelValues("error").Inc()
		c.logger.Error("snapshot handler failed", "queue", c.queue, "tick", snap.Tick, "error", err)
		d.Nack(false, false)
		return
	}

	telemetry.MirrorDeliveries.WithLabelValues("ok").Inc()
	d.Ack(false)
}

// DecodeSnapshot разбирает тело сообщения зеркала.
// Сообщение другого типа или без payload — ошибка.
func DecodeSnapshot(body []byte) (SnapshotPayload, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return SnapshotPayload{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != MessageTypeSnapshot {
		return SnapshotPayload{}, fmt.Errorf("message %s: unexpected type %q", msg.ID, msg.Type)
	}
	if len(msg.Payload) == 0 {
		return SnapshotPayload{}, fmt.Errorf("message %s: empty payload", msg.ID)
	}

	var snap SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		return SnapshotPayload{}, fmt.Errorf("message %s: unmarshal snapshot: %w", msg.ID, err)
	}
	return snap, nil
}
