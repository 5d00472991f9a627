package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kimpdash/internal/models"
)

// Ошибки репозитория премии
var (
	ErrKimpNotFound = errors.New("kimp data not found")
)

// KimpRepository - чтение минутных записей премии из таблицы kimp_1m
//
// Таблицу заполняет внешний сборщик данных, дашборд только читает.
type KimpRepository struct {
	db *sql.DB
}

// NewKimpRepository создает новый экземпляр репозитория
func NewKimpRepository(db *sql.DB) *KimpRepository {
	return &KimpRepository{db: db}
}

// GetLatest возвращает последнюю запись
func (r *KimpRepository) GetLatest(ctx context.Context) (*models.KimpData, error) {
	query := `
		SELECT kimp, btc_krw, btc_usd, usd_krw, timestamp
		FROM kimp_1m
		ORDER BY timestamp DESC
		LIMIT 1`

	data := &models.KimpData{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&data.Kimp,
		&data.BtcKRW,
		&data.BtcUSD,
		&data.UsdKRW,
		&data.Timestamp,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return nil, ErrKimpNotFound
		}
		return nil, err
	}

	return data, nil
}

// GetRange возвращает записи в интервале [from, to] по возрастанию времени
func (r *KimpRepository) GetRange(ctx context.Context, from, to time.Time) ([]*models.KimpData, error) {
	query := `
		SELECT kimp, btc_krw, btc_usd, usd_krw, timestamp
		FROM kimp_1m
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var history []*models.KimpData
	for rows.Next() {
		data := &models.KimpData{}
		err := rows.Scan(
			&data.Kimp,
			&data.BtcKRW,
			&data.BtcUSD,
			&data.UsdKRW,
			&data.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		history = append(history, data)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}

// Ping проверяет доступность таблицы одним коротким запросом
func (r *KimpRepository) Ping(ctx context.Context) error {
	var ts time.Time
	err := r.db.QueryRowContext(ctx, `SELECT timestamp FROM kimp_1m LIMIT 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
