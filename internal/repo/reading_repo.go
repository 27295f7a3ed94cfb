package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/sensorhub/internal/domain"
)

// foreignKeyViolation — SQLSTATE нарушения внешнего ключа.
const foreignKeyViolation = "23503"

// ReadingRepo — репозиторий временного ряда показаний.
//
// Реализует границу persistence: Persist и PruneOlderThan.
type ReadingRepo struct {
	pool *pgxpool.Pool
}

// NewReadingRepo создаёт новый ReadingRepo.
func NewReadingRepo(pool *pgxpool.Pool) *ReadingRepo {
	return &ReadingRepo{pool: pool}
}

// Persist добавляет одно показание.
//
// Идемпотентно по ключу (sensor_address, recorded_at): повторная запись
// того же показания ничего не меняет.
func (r *ReadingRepo) Persist(ctx context.Context, reading domain.Reading) error {
	query := `
		INSERT INTO readings (sensor_address, temperature, humidity, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sensor_address, recorded_at) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		int16(reading.SensorAddress),
		reading.Temperature,
		reading.Humidity,
		reading.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("persist reading 0x%02X: %w", reading.SensorAddress, ErrUnknownSensor)
		}
		return fmt.Errorf("persist reading 0x%02X: %w", reading.SensorAddress, err)
	}
	return nil
}

// PruneOlderThan удаляет показания старше retention.
// Каталог датчиков не затрагивается. Возвращает количество удалённых строк.
func (r *ReadingRepo) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	result, err := r.pool.Exec(ctx, `DELETE FROM readings WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	return result.RowsAffected(), nil
}

// Recent возвращает последние limit показаний датчика, новые первыми.
func (r *ReadingRepo) Recent(ctx context.Context, addr uint8, limit int) ([]domain.Reading, error) {
	query := `
		SELECT sensor_address, temperature, humidity, recorded_at
		FROM readings
		WHERE sensor_address = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, int16(addr), limit)
	if err != nil {
		return nil, fmt.Errorf("recent readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

// Stats — агрегаты по показаниям датчика за период.
type Stats struct {
	SensorAddress  uint8     `json:"sensor_address"`
	Since          time.Time `json:"since"`
	Count          int64     `json:"count"`
	AvgTemperature float64   `json:"avg_temperature"`
	MinTemperature float32   `json:"min_temperature"`
	MaxTemperature float32   `json:"max_temperature"`
	AvgHumidity    float64   `json:"avg_humidity"`
}

// Stats считает агрегаты по показаниям датчика начиная с since.
// Если показаний нет, возвращает ErrNotFound.
func (r *ReadingRepo) Stats(ctx context.Context, addr uint8, since time.Time) (*Stats, error) {
	query := `
		SELECT COUNT(*), AVG(temperature), MIN(temperature), MAX(temperature), AVG(humidity)
		FROM readings
		WHERE sensor_address = $1 AND recorded_at > $2
	`
	var (
		count           int64
		avgTemp, avgHum *float64
		minTemp, maxTmp *float32
	)
	err := r.pool.QueryRow(ctx, query, int16(addr), since).Scan(&count, &avgTemp, &minTemp, &maxTmp, &avgHum)
	if err != nil {
		return nil, fmt.Errorf("sensor stats: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	return &Stats{
		SensorAddress:  addr,
		Since:          since,
		Count:          count,
		AvgTemperature: deref(avgTemp),
		MinTemperature: deref(minTemp),
		MaxTemperature: deref(maxTmp),
		AvgHumidity:    deref(avgHum),
	}, nil
}

// Count возвращает общее количество показаний.
func (r *ReadingRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// --- Helpers ---

// scanReading сканирует строку из rows в Reading.
func scanReading(row pgx.Row) (domain.Reading, error) {
	var reading domain.Reading
	var addr int16

	err := row.Scan(&addr, &reading.Temperature, &reading.Humidity, &reading.Timestamp)
	if err != nil {
		return reading, fmt.Errorf("scan reading: %w", err)
	}

	reading.SensorAddress = uint8(addr)
	return reading, nil
}

// nullTime возвращает nil для нулевого времени (для NULL в БД).
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
