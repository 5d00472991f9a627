package repository

import (
	"context"
	"sync"
	"time"

	"kimpdash/internal/models"
)

// MemoryStateStore - хранилище состояния в памяти процесса
//
// Не разделяется между процессами и теряется при перезапуске.
// Используется для разработки и тестов.
type MemoryStateStore struct {
	mu      sync.RWMutex
	records map[string]models.SystemStatusRecord
}

// NewMemoryStateStore создает пустое хранилище
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{records: make(map[string]models.SystemStatusRecord)}
}

// Get возвращает копию записи или ErrStateNotFound
func (s *MemoryStateStore) Get(ctx context.Context, key string) (*models.SystemStatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	rec.Value = append([]byte(nil), rec.Value...)
	return &rec, nil
}

// Upsert перезаписывает запись целиком
func (s *MemoryStateStore) Upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.records[key] = models.SystemStatusRecord{
		Key:       key,
		Value:     append([]byte(nil), value...),
		UpdatedAt: updatedAt.UTC(),
	}
	s.mu.Unlock()
	return nil
}

// Ping всегда успешен
func (s *MemoryStateStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close ничего не делает
func (s *MemoryStateStore) Close() error {
	return nil
}
