package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/sensorhub/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeSnapshot MessageType = "telemetry.snapshot"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotPayload — payload сообщения со снапшотом.
type SnapshotPayload struct {
	Tick      uint64           `json:"tick"`
	Timestamp time.Time        `json:"timestamp"`
	Readings  []domain.Reading `json:"readings"`
}

// NewSnapshotMessage строит сообщение из снапшота.
func NewSnapshotMessage(snap domain.Snapshot) (*Message, error) {
	payload, err := json.Marshal(SnapshotPayload{
		Tick:      snap.Tick,
		Timestamp: snap.Timestamp,
		Readings:  snap.Readings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	return &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeSnapshot,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Publish публикует сообщение в указанный exchange.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange), // exchange
			"",               // routing key (fanout)
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient, // снапшот не переживает рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", exchange, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishSnapshot публикует снапшот в ExchangeSnapshots.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	msg, err := NewSnapshotMessage(snap)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeSnapshots, msg)
}
