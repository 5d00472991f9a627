package repository

import (
	"context"
	"database/sql"

	"kimpdash/internal/models"
)

// TradeRepository - чтение истории сделок из таблицы trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// GetRecent возвращает последние limit сделок, новые первыми
func (r *TradeRepository) GetRecent(ctx context.Context, limit int) ([]*models.Trade, error) {
	query := `
		SELECT id, symbol, quantity, entry_kimp, exit_kimp, pnl_krw, status, opened_at, closed_at
		FROM trades
		ORDER BY opened_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.Quantity,
			&trade.EntryKimp,
			&trade.ExitKimp,
			&trade.PnlKRW,
			&trade.Status,
			&trade.OpenedAt,
			&trade.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// Count возвращает общее количество сделок
func (r *TradeRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count)
	return count, err
}
