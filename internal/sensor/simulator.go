package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Пределы, в которых держится симулированная величина.
const (
	simMinTemperature = -10
	simMaxTemperature = 50
	simMinHumidity    = 0
	simMaxHumidity    = 100
)

// Simulator — симулятор датчиков температуры и влажности.
//
// Каждое чтение добавляет к предыдущему значению случайный дрейф
// (±0.5 °C, ±1 %) и периодическую составляющую, после чего значения
// ограничиваются реалистичными пределами.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	state  map[uint8]*simState
	now    func() time.Time
	config SimulatorConfig
}

type simState struct {
	temperature float64
	humidity    float64
}

// SimulatorConfig — конфигурация симулятора.
type SimulatorConfig struct {
	// Seed — зерно генератора (0 — случайное).
	Seed uint64

	// Latency — имитация задержки шины.
	Latency time.Duration

	// FailureRate — доля чтений, завершающихся ErrUnavailable (0..1).
	FailureRate float64

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// NewSimulator создаёт симулятор.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Simulator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		state:  make(map[uint8]*simState),
		now:    now,
		config: cfg,
	}
}

// AcquireSample возвращает следующее симулированное показание датчика.
func (s *Simulator) AcquireSample(ctx context.Context, addr uint8) (float32, float32, error) {
	if s.config.Latency > 0 {
		timer := time.NewTimer(s.config.Latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.FailureRate > 0 && s.rng.Float64() < s.config.FailureRate {
		return 0, 0, fmt.Errorf("sensor 0x%02X: %w", addr, ErrUnavailable)
	}

	st, ok := s.state[addr]
	if !ok {
		// Начальные значения как у свежевключённого датчика
		st = &simState{
			temperature: 20 + float64(s.rng.IntN(100))/10,
			humidity:    40 + float64(s.rng.IntN(400))/10,
		}
		s.state[addr] = st
	}

	st.temperature += s.uniform(-0.5, 0.5)
	st.humidity += s.uniform(-1.0, 1.0)

	sec := float64(s.now().Unix())
	st.temperature += math.Sin(sec/10) * 0.1
	st.humidity += math.Cos(sec/15) * 0.5

	st.temperature = clamp(st.temperature, simMinTemperature, simMaxTemperature)
	st.humidity = clamp(st.humidity, simMinHumidity, simMaxHumidity)

	return float32(st.temperature), float32(st.humidity), nil
}

// Seed задаёт текущее значение датчика (для тестов и калибровки).
func (s *Simulator) Seed(addr uint8, temperature, humidity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[addr] = &simState{temperature: temperature, humidity: humidity}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
