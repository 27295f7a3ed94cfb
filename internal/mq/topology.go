package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Exchanges — имена обменников.
const (
	// ExchangeSnapshots — fanout-обменник снапшотов телеметрии.
	// Каждая привязанная очередь получает каждый снапшот.
	ExchangeSnapshots Exchange = "sensorhub.snapshots"
)

// SetupTopology объявляет обменники зеркала.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, declareExchanges)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeSnapshots, amqp.ExchangeFanout},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// DeclareTailQueue создаёт эксклюзивную временную очередь, привязанную
// к ExchangeSnapshots, и возвращает её имя.
//
// Очередь живёт, пока открыто соединение, и ограничена по длине:
// медленный подписчик теряет старые снапшоты, а не копит их.
func DeclareTailQueue(ctx context.Context, conn *Connection) (string, error) {
	var name string

	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		q, err := ch.QueueDeclare(
			"",    // name (сгенерирует сервер)
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			amqp.Table{
				"x-max-length": int32(100),
				"x-overflow":   "drop-head",
			},
		)
		if err != nil {
			return fmt.Errorf("declare tail queue: %w", err)
		}

		if err := ch.QueueBind(q.Name, "", string(ExchangeSnapshots), false, nil); err != nil {
			return fmt.Errorf("bind tail queue to %s: %w", ExchangeSnapshots, err)
		}

		name = q.Name
		return nil
	})

	return name, err
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  SensorHub RabbitMQ Topology:

    sensorhub.snapshots (fanout)
    └── amq.gen-* (exclusive, x-max-length=100)
            Consumer: sensorhub-cli mirror
  `
}
