// Package sensor — граница получения показаний.
//
// Source абстрагирует чтение датчика (реальная шина или симулятор).
// Вызов обязан завершаться за ограниченное время: цикл опроса
// дополнительно ограничивает его контекстом с таймаутом.
package sensor

import (
	"context"
	"errors"
)

// Source читает одно показание датчика по адресу.
type Source interface {
	AcquireSample(ctx context.Context, addr uint8) (temperature, humidity float32, err error)
}

// SourceFunc — адаптер функции к Source.
type SourceFunc func(ctx context.Context, addr uint8) (float32, float32, error)

// AcquireSample вызывает f.
func (f SourceFunc) AcquireSample(ctx context.Context, addr uint8) (float32, float32, error) {
	return f(ctx, addr)
}

// ErrUnavailable — показание в этом тике недоступно (транзиентная ошибка).
var ErrUnavailable = errors.New("sample unavailable")
