package domain

import "errors"

// Ошибки модели датчиков.
var (
	// ErrSensorNotFound — датчика с таким адресом нет в ростере.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrDuplicateAddress — два датчика с одинаковым адресом.
	ErrDuplicateAddress = errors.New("duplicate sensor address")

	// ErrTooManySensors — превышено MaxSensors.
	ErrTooManySensors = errors.New("too many sensors")

	// ErrEmptyRoster — ростер без датчиков.
	ErrEmptyRoster = errors.New("empty roster")

	// ErrEmptyName — пустое имя датчика.
	ErrEmptyName = errors.New("empty sensor name")

	// ErrNameTooLong — имя не помещается в запись wire-формата.
	ErrNameTooLong = errors.New("sensor name too long")

	// ErrOutOfRange — показание вне допустимого диапазона.
	ErrOutOfRange = errors.New("reading out of range")
)
