package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/sensorhub/internal/viewer"
)

// Ограничения параметров истории.
const (
	defaultReadingsLimit = 20
	maxReadingsLimit     = 1000
	defaultStatsWindow   = time.Hour
)

// Health возвращает состояние демона.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.store.Read()
	JSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  h.now().Sub(h.startedAt).Round(time.Second).String(),
		Viewers: h.viewers(),
		Tick:    snap.Tick,
		Stale:   snap.StaleCount(),
	})
}

// ListSensors возвращает ростер с текущими показаниями.
// GET /api/v1/sensors
func (h *Handler) ListSensors(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.store.Read()
	sensors := h.roster.Sensors()

	result := make([]SensorResponse, len(sensors))
	for i, s := range sensors {
		result[i] = SensorFromDomain(s, snap)
	}

	List(w, result, len(result))
}

// GetSensor возвращает датчик по адресу.
// GET /api/v1/sensors/{addr}
func (h *Handler) GetSensor(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r)
	if !ok {
		return
	}

	sensor, err := h.roster.Get(addr)
	if HandleError(w, h.logger, err, "sensor not found") {
		return
	}

	snap, _ := h.store.Read()
	Success(w, SensorFromDomain(sensor, snap))
}

// ListReadings возвращает последние сохранённые показания датчика.
// GET /api/v1/sensors/{addr}/readings?limit=20
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		Unavailable(w, "history is not available")
		return
	}

	addr, ok := parseAddr(w, r)
	if !ok {
		return
	}

	limit := defaultReadingsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxReadingsLimit {
			BadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxReadingsLimit))
			return
		}
		limit = n
	}

	readings, err := h.history.Recent(r.Context(), addr, limit)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]ReadingResponse, len(readings))
	for i, rd := range readings {
		result[i] = ReadingFromDomain(rd)
	}

	List(w, result, len(result))
}

// GetStats возвращает агрегаты по датчику за окно.
// GET /api/v1/sensors/{addr}/stats?since=1h
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		Unavailable(w, "history is not available")
		return
	}

	addr, ok := parseAddr(w, r)
	if !ok {
		return
	}

	window := defaultStatsWindow
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			BadRequest(w, "since must be a positive duration")
			return
		}
		window = d
	}

	stats, err := h.history.Stats(r.Context(), addr, h.now().Add(-window))
	if HandleError(w, h.logger, err, "no readings in window") {
		return
	}

	Success(w, StatsFromRepo(*stats))
}

// parseAddr разбирает {addr} из пути; при ошибке пишет 400.
func parseAddr(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	addr, err := viewer.ParseAddress(r.PathValue("addr"))
	if err != nil {
		BadRequest(w, err.Error())
		return 0, false
	}
	return addr, true
}
