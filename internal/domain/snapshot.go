package domain

import "time"

// Snapshot — полный набор показаний, снятых за один тик опроса.
//
// Содержит ровно одно Reading на каждый активный датчик в порядке ростера.
// Текущим в каждый момент является ровно один Snapshot.
type Snapshot struct {
	// Tick — порядковый номер тика (начиная с 1).
	Tick uint64 `json:"tick"`

	// Timestamp — время тика.
	Timestamp time.Time `json:"timestamp"`

	// Readings — показания активных датчиков.
	Readings []Reading `json:"readings"`
}

// Clone возвращает глубокую копию снапшота.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Readings != nil {
		out.Readings = make([]Reading, len(s.Readings))
		copy(out.Readings, s.Readings)
	}
	return out
}

// IsZero проверяет, что снапшот ещё не был снят.
func (s Snapshot) IsZero() bool {
	return s.Tick == 0 && s.Timestamp.IsZero() && len(s.Readings) == 0
}

// Reading возвращает показание датчика по адресу.
func (s Snapshot) Reading(addr uint8) (Reading, bool) {
	for _, r := range s.Readings {
		if r.SensorAddress == addr {
			return r, true
		}
	}
	return Reading{}, false
}

// StaleCount возвращает количество устаревших показаний.
func (s Snapshot) StaleCount() int {
	var n int
	for _, r := range s.Readings {
		if r.Stale {
			n++
		}
	}
	return n
}
