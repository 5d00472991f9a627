package repository

import (
	"context"
	"database/sql"
	"errors"

	"kimpdash/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("open position not found")
)

// PositionRepository - чтение таблицы positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// GetOpen возвращает последнюю открытую позицию или ErrPositionNotFound
func (r *PositionRepository) GetOpen(ctx context.Context) (*models.Position, error) {
	query := `
		SELECT id, symbol, quantity, entry_price_krw, entry_price_usd, entry_kimp, usd_krw, status, created_at
		FROM positions
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1`

	pos := &models.Position{}
	var usdKRW sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, models.PositionStatusOpen).Scan(
		&pos.ID,
		&pos.Symbol,
		&pos.Quantity,
		&pos.EntryPriceKRW,
		&pos.EntryPriceUSD,
		&pos.EntryKimp,
		&usdKRW,
		&pos.Status,
		&pos.OpenedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	pos.UsdKRW = models.DefaultUsdKRW
	if usdKRW.Valid && usdKRW.Float64 > 0 {
		pos.UsdKRW = usdKRW.Float64
	}

	return pos, nil
}
