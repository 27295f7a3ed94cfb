package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrUnknownSensor — показание ссылается на датчик, которого нет в каталоге.
	ErrUnknownSensor = errors.New("sensor is not registered in catalog")
)
