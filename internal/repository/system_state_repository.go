package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kimpdash/internal/models"
)

// Ошибки хранилища состояния
var (
	ErrStateNotFound = errors.New("system state not found")
)

// SystemStateRepository - работа с таблицей system_status (PostgreSQL)
//
// Одна строка на ключ, запись только через upsert.
// Значение хранится в JSONB и не интерпретируется репозиторием.
type SystemStateRepository struct {
	db *sql.DB
}

// NewSystemStateRepository создает новый экземпляр репозитория
func NewSystemStateRepository(db *sql.DB) *SystemStateRepository {
	return &SystemStateRepository{db: db}
}

// EnsureSchema создает таблицу system_status, если ее нет
func (r *SystemStateRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS system_status (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Get возвращает запись по ключу или ErrStateNotFound
func (r *SystemStateRepository) Get(ctx context.Context, key string) (*models.SystemStatusRecord, error) {
	query := `
		SELECT key, value, updated_at
		FROM system_status
		WHERE key = $1`

	record := &models.SystemStatusRecord{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&record.Key,
		&record.Value,
		&record.UpdatedAt,
	)

	if err != nil {
		// Таблицы нет: схема не создалась при старте, записей еще не было
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}

	return record, nil
}

// Upsert перезаписывает единственную запись для ключа.
// Если таблицы нет (БД была недоступна при старте), создает ее и повторяет запись.
func (r *SystemStateRepository) Upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error {
	err := r.upsert(ctx, key, value, updatedAt)
	if !isUndefinedTable(err) {
		return err
	}

	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}
	return r.upsert(ctx, key, value, updatedAt)
}

func (r *SystemStateRepository) upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error {
	query := `
		INSERT INTO system_status (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, key, value, updatedAt.UTC())
	return err
}

// Ping проверяет доступность базы
func (r *SystemStateRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close ничего не делает: пулом соединений владеет main
func (r *SystemStateRepository) Close() error {
	return nil
}
