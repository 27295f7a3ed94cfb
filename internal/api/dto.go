package api

import (
	"fmt"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/repo"
)

// Sensor DTOs

// ReadingResponse — ответ с показанием.
type ReadingResponse struct {
	Temperature float32   `json:"temperature"`
	Humidity    float32   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
	Stale       bool      `json:"stale"`
}

// ReadingFromDomain конвертирует domain.Reading в ReadingResponse.
func ReadingFromDomain(r domain.Reading) ReadingResponse {
	return ReadingResponse{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Timestamp:   r.Timestamp,
		Stale:       r.Stale,
	}
}

// SensorResponse — ответ с датчиком и его текущим показанием.
// Reading отсутствует у выключенного датчика и до первого тика.
type SensorResponse struct {
	Address string           `json:"address"`
	Name    string           `json:"name"`
	Active  bool             `json:"active"`
	Reading *ReadingResponse `json:"reading,omitempty"`
}

// SensorFromDomain собирает SensorResponse из описания датчика и снапшота.
func SensorFromDomain(s domain.Sensor, snap domain.Snapshot) SensorResponse {
	resp := SensorResponse{
		Address: formatAddress(s.Address),
		Name:    s.Name,
		Active:  s.Active,
	}
	if r, ok := snap.Reading(s.Address); ok {
		rr := ReadingFromDomain(r)
		resp.Reading = &rr
	}
	return resp
}

// Stats DTOs

// StatsResponse — агрегаты по датчику.
type StatsResponse struct {
	Address        string    `json:"address"`
	Since          time.Time `json:"since"`
	Count          int64     `json:"count"`
	AvgTemperature float64   `json:"avg_temperature"`
	MinTemperature float32   `json:"min_temperature"`
	MaxTemperature float32   `json:"max_temperature"`
	AvgHumidity    float64   `json:"avg_humidity"`
}

// StatsFromRepo конвертирует repo.Stats в StatsResponse.
func StatsFromRepo(s repo.Stats) StatsResponse {
	return StatsResponse{
		Address:        formatAddress(s.SensorAddress),
		Since:          s.Since,
		Count:          s.Count,
		AvgTemperature: s.AvgTemperature,
		MinTemperature: s.MinTemperature,
		MaxTemperature: s.MaxTemperature,
		AvgHumidity:    s.AvgHumidity,
	}
}

// Health DTOs

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Viewers int    `json:"viewers"`
	Tick    uint64 `json:"tick"`
	Stale   int    `json:"stale"`
}

func formatAddress(addr uint8) string {
	return fmt.Sprintf("0x%02X", addr)
}
