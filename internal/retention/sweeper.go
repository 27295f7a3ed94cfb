package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/sensorhub/internal/telemetry"
)

// Default configuration values.
const (
	DefaultSchedule  = "@every 1m"
	DefaultRetention = 7 * 24 * time.Hour

	sweepTimeout = 30 * time.Second
)

// Pruner удаляет показания старше заданного срока.
type Pruner interface {
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// Sweeper — периодическая очистка временного ряда по сроку хранения.
type Sweeper struct {
	pruner    Pruner
	schedule  cron.Schedule
	expr      string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Config — конфигурация Sweeper.
type Config struct {
	Pruner    Pruner
	Schedule  string        // cron-выражение (default: "@every 1m")
	Retention time.Duration // срок хранения (default: 7 дней)
	Logger    *slog.Logger
}

// New создаёт новый Sweeper.
func New(cfg Config) (*Sweeper, error) {
	if cfg.Pruner == nil {
		return nil, errors.New("retention: pruner is required")
	}

	expr := cfg.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", expr, err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		pruner:    cfg.Pruner,
		schedule:  schedule,
		expr:      expr,
		retention: retention,
		now:       time.Now,
		logger:    telemetry.WithComponent(logger, "retention"),
	}, nil
}

// Run ждёт очередного срабатывания расписания и выполняет Sweep.
// Возвращает nil после отмены ctx.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("retention sweeper started",
		"schedule", s.expr,
		"retention", s.retention,
	)

	for {
		now := s.now()
		next := nextActivation(s.schedule, now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("retention sweeper stopped")
			return nil
		case <-timer.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет одну очистку.
// Ошибка логируется и учитывается в метриках, но не возвращается:
// следующая попытка будет по расписанию.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	deleted, err := s.pruner.PruneOlderThan(ctx, s.retention)
	if err != nil {
		telemetry.PruneRuns.WithLabelValues("error").Inc()
		s.logger.Error("prune failed", "error", err)
		return 0
	}

	telemetry.PruneRuns.WithLabelValues("ok").Inc()
	telemetry.PrunedRows.Add(float64(deleted))

	level := slog.LevelDebug
	if deleted > 0 {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "prune completed",
		"deleted", deleted,
		"retention", s.retention,
		"duration", time.Since(start),
	)
	return deleted
}
