package service

import (
	"context"
	"errors"
	"time"

	"kimpdash/internal/models"
	"kimpdash/internal/repository"
	"kimpdash/pkg/utils"
)

// PositionService - открытая позиция и вложенные суммы
type PositionService struct {
	positionRepo PositionRepositoryInterface
	kimpRepo     KimpRepositoryInterface
	now          func() time.Time
	log          *utils.Logger
}

// NewPositionService создает новый экземпляр PositionService
func NewPositionService(positionRepo PositionRepositoryInterface, kimpRepo KimpRepositoryInterface) *PositionService {
	return &PositionService{
		positionRepo: positionRepo,
		kimpRepo:     kimpRepo,
		now:          time.Now,
		log:          utils.L().WithComponent("position"),
	}
}

// GetPosition возвращает открытую позицию с текущими ценами.
//
// Без открытой позиции: has_position=false, суммы нулевые, positions пустой.
func (s *PositionService) GetPosition(ctx context.Context) (*models.PositionView, error) {
	pos, err := s.positionRepo.GetOpen(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			return &models.PositionView{Positions: []models.PositionRow{}}, nil
		}
		return nil, err
	}

	if pos.UsdKRW <= 0 {
		pos.UsdKRW = models.DefaultUsdKRW
	}
	pos.HoldingHours = utils.HoursSince(pos.OpenedAt, s.now())

	// Текущие цены не обязательны: без них позиция все равно отображается
	current, err := s.kimpRepo.GetLatest(ctx)
	switch {
	case err == nil:
		krw, usd := current.BtcKRW, current.BtcUSD
		pos.CurrentPriceKRW = &krw
		pos.CurrentPriceUSD = &usd
	case !errors.Is(err, repository.ErrKimpNotFound):
		s.log.Warn("position: failed to read current prices", utils.Err(err))
	}

	upbit, binance, total := utils.InvestedKRW(pos.Quantity, pos.EntryPriceKRW, pos.EntryPriceUSD, pos.UsdKRW)

	row := models.PositionRow{
		Symbol:     pos.Symbol,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPriceKRW,
	}
	if row.Symbol == "" {
		row.Symbol = "BTC"
	}
	if pos.CurrentPriceKRW != nil {
		row.CurrentPrice = *pos.CurrentPriceKRW
	}

	return &models.PositionView{
		HasPosition: true,
		Position:    pos,
		InvestedAmounts: models.InvestedAmounts{
			TotalInvestedKRW:   total,
			UpbitInvested:      upbit,
			BinanceInvestedKRW: binance,
		},
		Positions: []models.PositionRow{row},
	}, nil
}
