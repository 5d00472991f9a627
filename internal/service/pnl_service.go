package service

import (
	"context"
	"errors"

	"kimpdash/internal/models"
	"kimpdash/internal/repository"
	"kimpdash/pkg/utils"
)

// PnLService - безубыточная премия и прибыль позиции
//
// Прибыль считается в пунктах премии: current - entry - fee%.
type PnLService struct {
	positionRepo PositionRepositoryInterface
	kimpRepo     KimpRepositoryInterface
	feeRate      float64 // доля: 0.0038 = 0.38%
	log          *utils.Logger
}

// NewPnLService создает новый экземпляр PnLService
func NewPnLService(positionRepo PositionRepositoryInterface, kimpRepo KimpRepositoryInterface, feeRate float64) *PnLService {
	return &PnLService{
		positionRepo: positionRepo,
		kimpRepo:     kimpRepo,
		feeRate:      feeRate,
		log:          utils.L().WithComponent("pnl"),
	}
}

// GetPnL возвращает PnL открытой позиции.
//
// Без позиции заполнены только current_kimp (если есть данные) и fee_rate.
// Без текущей премии расчетные поля остаются nil.
func (s *PnLService) GetPnL(ctx context.Context) (*models.PnL, error) {
	feePct := utils.FeePercent(s.feeRate)
	result := &models.PnL{FeeRate: feePct}

	current, err := s.kimpRepo.GetLatest(ctx)
	switch {
	case err == nil:
		k := current.Kimp
		result.CurrentKimp = &k
	case !errors.Is(err, repository.ErrKimpNotFound):
		s.log.Warn("pnl: failed to read current kimp", utils.Err(err))
	}

	pos, err := s.positionRepo.GetOpen(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			return result, nil
		}
		return nil, err
	}

	entry := pos.EntryKimp
	result.HasPosition = true
	result.EntryKimp = &entry

	if result.CurrentKimp == nil {
		return result, nil
	}
	cur := *result.CurrentKimp

	profit := utils.Round(utils.KimpProfit(entry, cur), 2)
	net := utils.Round(utils.NetProfit(entry, cur, s.feeRate), 2)
	breakeven := utils.Round(utils.BreakevenKimp(entry, s.feeRate), 2)
	profitable := utils.IsProfitable(entry, cur, s.feeRate)

	result.KimpProfit = &profit
	result.NetProfit = &net
	result.BreakevenKimp = &breakeven
	result.IsProfitable = &profitable

	return result, nil
}
