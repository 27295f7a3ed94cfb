package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/sensorhub/internal/domain"
)

// SensorRepo — репозиторий каталога датчиков.
type SensorRepo struct {
	pool *pgxpool.Pool
}

// NewSensorRepo создаёт новый SensorRepo.
func NewSensorRepo(pool *pgxpool.Pool) *SensorRepo {
	return &SensorRepo{pool: pool}
}

// Upsert регистрирует датчик в каталоге или обновляет его имя.
// created_at существующей записи не меняется.
func (r *SensorRepo) Upsert(ctx context.Context, s domain.Sensor) error {
	query := `
		INSERT INTO sensors (address, name, created_at)
		VALUES ($1, $2, COALESCE($3, now()))
		ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name
	`
	_, err := r.pool.Exec(ctx, query,
		int16(s.Address),
		s.Name,
		nullTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert sensor 0x%02X: %w", s.Address, err)
	}
	return nil
}

// RegisterRoster регистрирует все датчики ростера одной транзакцией.
// Выключенные датчики тоже попадают в каталог. Имена уже известных
// датчиков не перезаписываются.
func (r *SensorRepo) RegisterRoster(ctx context.Context, sensors []domain.Sensor) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range sensors {
		batch.Queue(`
			INSERT INTO sensors (address, name, created_at)
			VALUES ($1, $2, COALESCE($3, now()))
			ON CONFLICT (address) DO NOTHING
		`, int16(s.Address), s.Name, nullTime(s.CreatedAt))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("register roster: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit roster: %w", err)
	}
	return nil
}

// RestoreNames переносит имена из каталога в ростер.
// Датчики каталога, которых нет в ростере, пропускаются.
func (r *SensorRepo) RestoreNames(ctx context.Context, roster *domain.Roster) error {
	catalog, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, s := range catalog {
		if _, err := roster.Get(s.Address); err != nil {
			continue
		}
		if err := roster.SetName(s.Address, s.Name); err != nil {
			return fmt.Errorf("restore name of 0x%02X: %w", s.Address, err)
		}
	}
	return nil
}

// Get возвращает датчик каталога по адресу.
func (r *SensorRepo) Get(ctx context.Context, addr uint8) (*domain.Sensor, error) {
	query := `SELECT address, name, created_at FROM sensors WHERE address = $1`
	return scanSensor(r.pool.QueryRow(ctx, query, int16(addr)))
}

// List возвращает каталог, упорядоченный по адресу.
func (r *SensorRepo) List(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := r.pool.Query(ctx, `SELECT address, name, created_at FROM sensors ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()

	var sensors []domain.Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *s)
	}
	return sensors, rows.Err()
}

// scanSensor сканирует одну строку в Sensor.
func scanSensor(row pgx.Row) (*domain.Sensor, error) {
	var s domain.Sensor
	var addr int16

	err := row.Scan(&addr, &s.Name, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sensor: %w", err)
	}

	s.Address = uint8(addr)
	return &s, nil
}
