package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shaiso/sensorhub/internal/wire"
)

// Client — клиент зрителя поверх сокета сервиса.
//
// Между ответами на запросы сервер присылает SensorData на каждом тике,
// поэтому ожидание ответа пропускает конверты других типов.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial подключается к сервису.
func Dial(network, address string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s:%s: %w", network, address, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// NewClient оборачивает уже установленное соединение.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// Close закрывает соединение.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SensorList запрашивает текущий снапшот.
func (c *Client) SensorList() ([]wire.SensorRecord, error) {
	reply, err := c.roundTrip(wire.NewSensorList(), wire.TypeSensorData)
	if err != nil {
		return nil, err
	}
	return reply.SensorRecords()
}

// Control отправляет команду управления и возвращает ответ сервера.
// Ответ вида "error: ..." превращается в ошибку.
func (c *Client) Control(command string) (string, error) {
	reply, err := c.roundTrip(wire.NewControl(command), wire.TypeStatus)
	if err != nil {
		return "", err
	}

	text := reply.Text()
	if msg, ok := strings.CutPrefix(text, "error: "); ok {
		return "", fmt.Errorf("server: %s", msg)
	}
	return text, nil
}

// Status запрашивает строку состояния сервера.
func (c *Client) Status() (string, error) {
	reply, err := c.roundTrip(wire.NewStatus(""), wire.TypeStatus)
	if err != nil {
		return "", err
	}
	return reply.Text(), nil
}

// Watch читает рассылку и вызывает fn на каждый SensorData,
// пока ctx не отменён или fn не вернёт ошибку.
func (c *Client) Watch(ctx context.Context, fn func([]wire.SensorRecord) error) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if msg.Type != wire.TypeSensorData {
			continue
		}

		records, err := msg.SensorRecords()
		if err != nil {
			return err
		}
		if err := fn(records); err != nil {
			if errors.Is(err, errStopWatch) {
				return nil
			}
			return err
		}
	}
}

// errStopWatch останавливает Watch без ошибки.
var errStopWatch = errors.New("stop watch")

// roundTrip отправляет запрос и ждёт ответ нужного типа.
func (c *Client) roundTrip(req wire.Message, want wire.MessageType) (wire.Message, error) {
	deadline := time.Now().Add(c.timeout)
	c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	if err := wire.WriteMessage(c.conn, req); err != nil {
		return wire.Message{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			return wire.Message{}, fmt.Errorf("await %s: %w", want, err)
		}

		// Сервер отвечает Status на неподдерживаемый запрос
		if msg.Type == wire.TypeStatus && want != wire.TypeStatus {
			return wire.Message{}, fmt.Errorf("server: %s", strings.TrimPrefix(msg.Text(), "error: "))
		}
		if msg.Type == want {
			return msg, nil
		}
	}
}
