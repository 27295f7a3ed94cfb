package mq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/telemetry"
)

const defaultPublishTimeout = 2 * time.Second

// SnapshotPublisher публикует снапшот во внешнюю шину.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Mirror — асинхронное зеркало снапшотов.
//
// Offer никогда не блокирует цикл опроса: ящик хранит только последний
// снапшот, а публикацией занимается отдельная горутина (Run).
type Mirror struct {
	publisher SnapshotPublisher
	timeout   time.Duration
	mailbox   chan domain.Snapshot
	logger    *slog.Logger
}

// MirrorConfig — конфигурация Mirror.
type MirrorConfig struct {
	Publisher      SnapshotPublisher
	PublishTimeout time.Duration // ограничение одной публикации (default: 2s)
	Logger         *slog.Logger
}

// NewMirror создаёт новый Mirror.
func NewMirror(cfg MirrorConfig) (*Mirror, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("mirror: publisher is required")
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Mirror{
		publisher: cfg.Publisher,
		timeout:   timeout,
		mailbox:   make(chan domain.Snapshot, 1),
		logger:    telemetry.WithComponent(logger, "mirror"),
	}, nil
}

// Offer передаёт снапшот на публикацию.
// Неопубликованный предыдущий снапшот заменяется.
func (m *Mirror) Offer(snap domain.Snapshot) {
	snap = snap.Clone()
	for {
		select {
		case m.mailbox <- snap:
			return
		default:
		}

		select {
		case <-m.mailbox:
			telemetry.MirrorPublishes.WithLabelValues("coalesced").Inc()
		default:
		}
	}
}

// Run публикует снапшоты до отмены ctx.
func (m *Mirror) Run(ctx context.Context) error {
	m.logger.Info("snapshot mirror started", "exchange", ExchangeSnapshots)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("snapshot mirror stopped")
			return nil
		case snap := <-m.mailbox:
			m.publish(ctx, snap)
		}
	}
}

func (m *Mirror) publish(ctx context.Context, snap domain.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.publisher.PublishSnapshot(ctx, snap); err != nil {
		telemetry.MirrorPublishes.WithLabelValues("error").Inc()
		m.logger.Warn("snapshot publish failed", "tick", snap.Tick, "error", err)
		return
	}
	telemetry.MirrorPublishes.WithLabelValues("ok").Inc()
}
