package domain

import (
	"fmt"
	"sync"
	"time"
)

// Roster — фиксированный набор датчиков системы.
//
// Состав ростера не меняется после создания; меняются только флаги
// активности и имена. Ростер читают цикл опроса (каждый тик) и
// мультиплексор (команды управления от зрителей), поэтому доступ
// защищён собственной блокировкой.
type Roster struct {
	mu      sync.RWMutex
	sensors []Sensor
}

// NewRoster создаёт ростер из списка датчиков.
// Адреса должны быть уникальны, количество — не больше MaxSensors.
func NewRoster(sensors []Sensor) (*Roster, error) {
	if len(sensors) == 0 {
		return nil, ErrEmptyRoster
	}
	if len(sensors) > MaxSensors {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySensors, len(sensors), MaxSensors)
	}

	seen := make(map[uint8]bool, len(sensors))
	now := time.Now().UTC()

	out := make([]Sensor, len(sensors))
	for i, s := range sensors {
		if seen[s.Address] {
			return nil, fmt.Errorf("%w: 0x%02X", ErrDuplicateAddress, s.Address)
		}
		seen[s.Address] = true

		if s.Name == "" {
			s.Name = DefaultName(s.Address)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		out[i] = s
	}

	return &Roster{sensors: out}, nil
}

// DefaultRoster создаёт ростер из count активных датчиков
// с адресами AddressBase, AddressBase+1, ...
func DefaultRoster(count int) (*Roster, error) {
	if count <= 0 || count > MaxSensors {
		return nil, fmt.Errorf("%w: count %d", ErrTooManySensors, count)
	}

	sensors := make([]Sensor, count)
	for i := range sensors {
		addr := AddressBase + uint8(i)
		sensors[i] = Sensor{
			Address: addr,
			Name:    DefaultName(addr),
			Active:  true,
		}
	}
	return NewRoster(sensors)
}

// Sensors возвращает копию всех датчиков в порядке ростера.
func (r *Roster) Sensors() []Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sensor, len(r.sensors))
	copy(out, r.sensors)
	return out
}

// Active возвращает копию активных датчиков в порядке ростера.
func (r *Roster) Active() []Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Len возвращает количество датчиков в ростере.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}

// Get возвращает датчик по адресу.
func (r *Roster) Get(addr uint8) (Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(addr)
	if i < 0 {
		return Sensor{}, fmt.Errorf("%w: 0x%02X", ErrSensorNotFound, addr)
	}
	return r.sensors[i], nil
}

// SetActive включает или выключает опрос датчика.
func (r *Roster) SetActive(addr uint8, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(addr)
	if i < 0 {
		return fmt.Errorf("%w: 0x%02X", ErrSensorNotFound, addr)
	}
	r.sensors[i].Active = active
	return nil
}

// SetName переименовывает датчик.
func (r *Roster) SetName(addr uint8, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(addr)
	if i < 0 {
		return fmt.Errorf("%w: 0x%02X", ErrSensorNotFound, addr)
	}

	updated := r.sensors[i]
	updated.Name = name
	if err := updated.Validate(); err != nil {
		return err
	}
	r.sensors[i] = updated
	return nil
}

// Names возвращает отображение адрес → имя.
func (r *Roster) Names() map[uint8]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[uint8]string, len(r.sensors))
	for _, s := range r.sensors {
		out[s.Address] = s.Name
	}
	return out
}

// indexOf вызывается под блокировкой.
func (r *Roster) indexOf(addr uint8) int {
	for i := range r.sensors {
		if r.sensors[i].Address == addr {
			return i
		}
	}
	return -1
}
