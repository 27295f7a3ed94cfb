package domain

import (
	"fmt"
	"time"
)

// Параметры адресации датчиков.
const (
	// AddressBase — адрес первого датчика на шине I2C.
	AddressBase uint8 = 0x40

	// MaxSensors — максимальное число датчиков в ростере.
	MaxSensors = 8

	// MaxNameLen — максимальная длина имени датчика в байтах.
	// Ограничение задаётся форматом записи в wire-конверте (32 байта с NUL).
	MaxNameLen = 31
)

// Допустимые диапазоны показаний.
const (
	MinTemperature float32 = -40
	MaxTemperature float32 = 125
	MinHumidity    float32 = 0
	MaxHumidity    float32 = 100
)

// Sensor — источник телеметрии (датчик температуры и влажности).
//
// Создаётся при старте из фиксированного ростера и не удаляется до конца
// работы процесса. Меняется только через явные Roster.SetActive и
// Roster.SetName.
type Sensor struct {
	// Address — уникальный адрес датчика на шине.
	Address uint8 `json:"address" yaml:"address"`

	// Name — человекочитаемое имя (не длиннее MaxNameLen байт).
	Name string `json:"name" yaml:"name"`

	// Active — участвует ли датчик в опросе.
	Active bool `json:"active" yaml:"active"`

	// CreatedAt — время регистрации в каталоге.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// DefaultName возвращает имя датчика по умолчанию: "Sensor_40", "Sensor_41", ...
func DefaultName(addr uint8) string {
	return fmt.Sprintf("Sensor_%02X", addr)
}

// Validate проверяет корректность описания датчика.
func (s Sensor) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sensor 0x%02X: %w", s.Address, ErrEmptyName)
	}
	if len(s.Name) > MaxNameLen {
		return fmt.Errorf("sensor 0x%02X: %w (%d > %d)", s.Address, ErrNameTooLong, len(s.Name), MaxNameLen)
	}
	return nil
}

// Reading — одно показание датчика за тик.
//
// Reading — неизменяемое значение: передаётся по значению в persistence
// и в построитель broadcast-сообщения и нигде не хранится как общее
// изменяемое состояние.
type Reading struct {
	// SensorAddress — адрес датчика.
	SensorAddress uint8 `json:"sensor_address"`

	// Temperature — температура, °C.
	Temperature float32 `json:"temperature"`

	// Humidity — относительная влажность, %.
	Humidity float32 `json:"humidity"`

	// Timestamp — время тика (общее для всех показаний снапшота).
	Timestamp time.Time `json:"timestamp"`

	// Stale — показание не удалось получить в этом тике,
	// значения взяты из предыдущего успешного чтения.
	// Stale-показания рассылаются зрителям, но не сохраняются.
	Stale bool `json:"stale,omitempty"`
}

// Validate проверяет, что значения лежат в допустимых диапазонах.
func (r Reading) Validate() error {
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %.2f", ErrOutOfRange, r.Temperature)
	}
	if r.Humidity < MinHumidity || r.Humidity > MaxHumidity {
		return fmt.Errorf("%w: humidity %.2f", ErrOutOfRange, r.Humidity)
	}
	return nil
}

// Key возвращает ключ идемпотентности показания: (адрес, время).
func (r Reading) Key() string {
	return fmt.Sprintf("%02x_%d", r.SensorAddress, r.Timestamp.UnixNano())
}
