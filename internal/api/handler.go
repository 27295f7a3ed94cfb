package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/repo"
)

// SnapshotReader — источник текущего снапшота.
type SnapshotReader interface {
	Read() (domain.Snapshot, bool)
}

// History — доступ к сохранённым показаниям.
type History interface {
	Recent(ctx context.Context, addr uint8, limit int) ([]domain.Reading, error)
	Stats(ctx context.Context, addr uint8, since time.Time) (*repo.Stats, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store     SnapshotReader
	roster    *domain.Roster
	history   History
	viewers   func() int
	startedAt time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store   SnapshotReader
	Roster  *domain.Roster
	History History // nil — эндпоинты истории отвечают 503

	// Viewers возвращает число подключённых зрителей.
	Viewers func() int

	StartedAt time.Time
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = cfg.Now()
	}
	if cfg.Viewers == nil {
		cfg.Viewers = func() int { return 0 }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Handler{
		store:     cfg.Store,
		roster:    cfg.Roster,
		history:   cfg.History,
		viewers:   cfg.Viewers,
		startedAt: cfg.StartedAt,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}
