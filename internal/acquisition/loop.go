package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/sensor"
	"github.com/shaiso/sensorhub/internal/store"
	"github.com/shaiso/sensorhub/internal/telemetry"
	"github.com/shaiso/sensorhub/internal/wire"
)

// Default configuration values.
const (
	defaultInterval      = time.Second
	defaultSampleTimeout = 200 * time.Millisecond
	persistTimeout       = 2 * time.Second
)

// Persister — граница долговременного хранилища.
type Persister interface {
	Persist(ctx context.Context, reading domain.Reading) error
}

// Broadcaster рассылает конверт всем подключённым зрителям.
// Вызов не должен блокироваться.
type Broadcaster interface {
	Broadcast(msg wire.Message)
}

// Mirror принимает снапшот для внешней публикации.
type Mirror interface {
	Offer(snap domain.Snapshot)
}

// Loop — цикл опроса датчиков.
//
// На каждом тике:
//  1. Опрашивает активные датчики ростера
//  2. Записывает снапшот в Store
//  3. Сохраняет свежие показания через Persister
//  4. Рассылает SensorData зрителям и предлагает снапшот зеркалу
type Loop struct {
	roster      *domain.Roster
	source      sensor.Source
	store       *store.Store
	sink        Persister
	broadcaster Broadcaster
	mirror      Mirror

	interval      time.Duration
	sampleTimeout time.Duration
	now           func() time.Time

	// Состояние тиков. Tick вызывается из одной горутины,
	// мьютекс нужен только для LastKnown из тестов и статуса.
	mu        sync.Mutex
	tick      uint64
	lastKnown map[uint8]domain.Reading

	logger *slog.Logger
}

// Config — конфигурация Loop.
type Config struct {
	Roster      *domain.Roster
	Source      sensor.Source
	Store       *store.Store
	Sink        Persister   // nil — показания не сохраняются
	Broadcaster Broadcaster // nil — рассылки нет
	Mirror      Mirror      // опционально

	Interval      time.Duration // период опроса (default: 1s)
	SampleTimeout time.Duration // ограничение на один датчик (default: 200ms)

	// Now — источник времени тика (для тестов).
	Now func() time.Time

	Logger *slog.Logger
}

// New создаёт новый Loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Roster == nil {
		return nil, errors.New("acquisition: roster is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("acquisition: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("acquisition: store is required")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	sampleTimeout := cfg.SampleTimeout
	if sampleTimeout <= 0 {
		sampleTimeout = defaultSampleTimeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		roster:        cfg.Roster,
		source:        cfg.Source,
		store:         cfg.Store,
		sink:          cfg.Sink,
		broadcaster:   cfg.Broadcaster,
		mirror:        cfg.Mirror,
		interval:      interval,
		sampleTimeout: sampleTimeout,
		now:           now,
		lastKnown:     make(map[uint8]domain.Reading),
		logger:        telemetry.WithComponent(logger, "acquisition"),
	}, nil
}

// Run выполняет тики до отмены ctx.
// Первый тик выполняется сразу, остальные — по тикеру.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("acquisition loop started",
		"interval", l.interval,
		"sample_timeout", l.sampleTimeout,
		"sensors", l.roster.Len(),
	)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			l.logger.Info("acquisition loop stopped")
			return nil
		}

		if _, err := l.Tick(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("acquisition tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			l.logger.Info("acquisition loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick выполняет один тик опроса и возвращает снятый снапшот.
//
// Ошибка датчика не прерывает тик: показание помечается Stale и берёт
// последние известные значения. Ошибки сохранения логируются.
func (l *Loop) Tick(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()
	defer func() {
		telemetry.TickDuration.Observe(time.Since(start).Seconds())
	}()

	active := l.roster.Active()
	ts := l.now().UTC().Truncate(time.Microsecond)

	l.mu.Lock()
	l.tick++
	snap := domain.Snapshot{
		Tick:      l.tick,
		Timestamp: ts,
		Readings:  make([]domain.Reading, 0, len(active)),
	}
	l.mu.Unlock()

	// 1. Опрашиваем датчики
	for _, s := range active {
		if err := ctx.Err(); err != nil {
			return domain.Snapshot{}, fmt.Errorf("tick %d: %w", snap.Tick, err)
		}
		snap.Readings = append(snap.Readings, l.sample(ctx, s.Address, ts))
	}

	// 2. Снапшот становится текущим до любых побочных эффектов
	l.store.Write(snap)

	// 3. Сохраняем свежие показания
	l.persist(ctx, snap)

	// 4. Рассылка
	if l.broadcaster != nil {
		records := wire.RecordsFromSnapshot(snap, l.roster.Names())
		l.broadcaster.Broadcast(wire.NewSensorData(records))
	}
	if l.mirror != nil {
		l.mirror.Offer(snap)
	}

	telemetry.AcquisitionTicks.Inc()
	l.logger.Debug("acquisition tick completed",
		"tick", snap.Tick,
		"readings", len(snap.Readings),
		"stale", snap.StaleCount(),
	)

	return snap, nil
}

// sample опрашивает один датчик с ограничением по времени.
func (l *Loop) sample(ctx context.Context, addr uint8, ts time.Time) domain.Reading {
	sctx, cancel := context.WithTimeout(ctx, l.sampleTimeout)
	defer cancel()

	temperature, humidity, err := l.source.AcquireSample(sctx, addr)
	if err == nil {
		reading := domain.Reading{
			SensorAddress: addr,
			Temperature:   temperature,
			Humidity:      humidity,
			Timestamp:     ts,
		}
		err = reading.Validate()
		if err == nil {
			l.remember(reading)
			telemetry.LastReading.WithLabelValues(sensorLabel(addr), "temperature").Set(float64(temperature))
			telemetry.LastReading.WithLabelValues(sensorLabel(addr), "humidity").Set(float64(humidity))
			return reading
		}
	}

	telemetry.AcquisitionErrors.WithLabelValues(sensorLabel(addr)).Inc()
	telemetry.WithSensor(l.logger, addr).Warn("sample unavailable, marking stale", "error", err)

	l.mu.Lock()
	last := l.lastKnown[addr]
	l.mu.Unlock()

	return domain.Reading{
		SensorAddress: addr,
		Temperature:   last.Temperature,
		Humidity:      last.Humidity,
		Timestamp:     ts,
		Stale:         true,
	}
}

// persist сохраняет нестейловые показания снапшота.
// Ошибка одного показания не мешает остальным.
func (l *Loop) persist(ctx context.Context, snap domain.Snapshot) {
	if l.sink == nil {
		return
	}

	for _, reading := range snap.Readings {
		if reading.Stale {
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		err := l.sink.Persist(pctx, reading)
		cancel()

		if err != nil {
			telemetry.PersistErrors.Inc()
			telemetry.WithSensor(l.logger, reading.SensorAddress).Error("failed to persist reading",
				"tick", snap.Tick,
				"error", err,
			)
			continue
		}
		telemetry.ReadingsPersisted.Inc()
	}
}

func (l *Loop) remember(r domain.Reading) {
	l.mu.Lock()
	l.lastKnown[r.SensorAddress] = r
	l.mu.Unlock()
}

// LastKnown возвращает последнее успешное показание датчика.
func (l *Loop) LastKnown(addr uint8) (domain.Reading, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.lastKnown[addr]
	return r, ok
}

func sensorLabel(addr uint8) string {
	return fmt.Sprintf("0x%02X", addr)
}
