package service

import (
	"context"

	"kimpdash/internal/models"
	"kimpdash/pkg/utils"
)

// DefaultTradesLimit - размер выборки сделок по умолчанию
const DefaultTradesLimit = 50

// TradeService - история сделок
type TradeService struct {
	tradeRepo TradeRepositoryInterface
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(tradeRepo TradeRepositoryInterface) *TradeService {
	return &TradeService{tradeRepo: tradeRepo}
}

// GetTrades возвращает последние сделки и их общее количество
func (s *TradeService) GetTrades(ctx context.Context, limit int) (*models.TradeHistory, error) {
	if err := utils.ValidateLimit(limit); err != nil {
		return nil, err
	}

	trades, err := s.tradeRepo.GetRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if trades == nil {
		trades = []*models.Trade{}
	}

	total, err := s.tradeRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &models.TradeHistory{
		Trades: trades,
		Total:  total,
		Limit:  limit,
	}, nil
}
