// Package store хранит последний снапшот телеметрии.
//
// Store — единственное место, где цикл опроса передаёт данные
// потребителям. Писатель один (acquisition.Loop), читателей много.
// Блокировка держится только на время копирования, без ввода-вывода.
package store

import (
	"sync"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
)

// Store — потокобезопасный держатель текущего снапшота.
type Store struct {
	mu        sync.RWMutex
	current   domain.Snapshot
	written   bool
	updatedAt time.Time
}

// New создаёт пустой Store.
func New() *Store {
	return &Store{}
}

// Write атомарно заменяет текущий снапшот его глубокой копией.
// Вызывающий может переиспользовать свой слайс показаний после возврата.
func (s *Store) Write(snap domain.Snapshot) {
	clone := snap.Clone()

	s.mu.Lock()
	s.current = clone
	s.written = true
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Read возвращает копию текущего снапшота.
// Второе значение false, если Write ещё не вызывался.
func (s *Store) Read() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.written {
		return domain.Snapshot{}, false
	}
	return s.current.Clone(), true
}

// UpdatedAt возвращает время последней записи.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
