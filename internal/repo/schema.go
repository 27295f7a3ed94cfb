package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — каталог датчиков и временной ряд показаний.
//
// Показание ссылается на датчик по адресу; пара (sensor_address, recorded_at)
// уникальна и служит ключом идемпотентности записи. Индексы по времени и по
// датчику обслуживают выборку последних показаний и агрегаты по диапазону.
const schema = `
CREATE TABLE IF NOT EXISTS sensors (
	address    SMALLINT PRIMARY KEY CHECK (address BETWEEN 0 AND 255),
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS readings (
	id             BIGSERIAL PRIMARY KEY,
	sensor_address SMALLINT NOT NULL REFERENCES sensors (address),
	temperature    REAL NOT NULL,
	humidity       REAL NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (sensor_address, recorded_at)
);

CREATE INDEX IF NOT EXISTS idx_readings_recorded_at ON readings (recorded_at);
CREATE INDEX IF NOT EXISTS idx_readings_sensor_address ON readings (sensor_address);
`

// Migrate создаёт таблицы и индексы, если их ещё нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
