package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"

	"kimpdash/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const badgerKeyPrefix = "system_status/"

// badgerRecord - формат значения в badger
type badgerRecord struct {
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BadgerStateStore - хранилище состояния во встроенной KV базе badger
//
// Подходит для установки на одном хосте: сервер и emergencyctl
// должны указывать на один каталог, но не работать с ним одновременно.
type BadgerStateStore struct {
	db *badger.DB
}

// OpenBadgerStateStore открывает (или создает) базу в каталоге path.
// Пустой path открывает базу в памяти.
func OpenBadgerStateStore(path string) (*BadgerStateStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStateStore{db: db}, nil
}

// Get возвращает запись по ключу или ErrStateNotFound
func (s *BadgerStateStore) Get(ctx context.Context, key string) (*models.SystemStatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}

	var rec badgerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode badger record %q: %w", key, err)
	}

	return &models.SystemStatusRecord{
		Key:       key,
		Value:     rec.Value,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Upsert перезаписывает запись для ключа
func (s *BadgerStateStore) Upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(badgerRecord{Value: value, UpdatedAt: updatedAt.UTC()})
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), raw)
	})
}

// Ping проверяет, что база открыта
func (s *BadgerStateStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger store is closed")
	}
	return ctx.Err()
}

// Close закрывает базу
func (s *BadgerStateStore) Close() error {
	return s.db.Close()
}
