package service

import (
	"context"
	"errors"
	"time"

	"kimpdash/internal/metrics"
	"kimpdash/internal/models"
	"kimpdash/internal/repository"
	"kimpdash/pkg/utils"
)

// Ошибки сервиса премии
var (
	ErrKimpUnavailable = errors.New("kimp data unavailable")
)

// KimpService - текущая премия, история и данные бегущей строки
type KimpService struct {
	kimpRepo KimpRepositoryInterface
	now      func() time.Time
	log      *utils.Logger
}

// NewKimpService создает новый экземпляр KimpService
func NewKimpService(kimpRepo KimpRepositoryInterface) *KimpService {
	return &KimpService{
		kimpRepo: kimpRepo,
		now:      time.Now,
		log:      utils.L().WithComponent("kimp"),
	}
}

// GetCurrent возвращает последнюю запись kimp_1m.
// Если данных нет - ErrKimpUnavailable. Пустую премию при известных ценах
// досчитывает из цен.
func (s *KimpService) GetCurrent(ctx context.Context) (*models.KimpData, error) {
	data, err := s.kimpRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrKimpNotFound) {
			return nil, ErrKimpUnavailable
		}
		return nil, err
	}

	if data.Kimp == 0 && data.BtcKRW > 0 {
		data.Kimp = utils.Round(utils.CalculateKimp(data.BtcKRW, data.BtcUSD, data.UsdKRW), 2)
	}

	metrics.Premium.Set(data.Kimp)
	return data, nil
}

// GetHistory возвращает записи за последние hours часов по возрастанию времени
func (s *KimpService) GetHistory(ctx context.Context, hours int) (*models.KimpHistory, error) {
	if err := utils.ValidateHours(hours); err != nil {
		return nil, err
	}

	tr := utils.LastNHours(s.now(), hours)
	data, err := s.kimpRepo.GetRange(ctx, tr.Start, tr.End)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []*models.KimpData{}
	}

	return &models.KimpHistory{
		Data:        data,
		Count:       len(data),
		PeriodHours: hours,
	}, nil
}

// GetTicker собирает отформатированные цены и изменение премии за час.
//
// Ошибки чтения не возвращаются: бегущая строка показывает "-".
func (s *KimpService) GetTicker(ctx context.Context) *models.Ticker {
	now := s.now()

	current, err := s.kimpRepo.GetLatest(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrKimpNotFound) {
			s.log.Warn("ticker: failed to read latest kimp", utils.Err(err))
		}
		return models.EmptyTicker(now)
	}

	ticker := &models.Ticker{
		BtcKRW:    utils.FormatKRW(current.BtcKRW),
		BtcUSDT:   utils.FormatUSD(current.BtcUSD),
		EthKRW:    models.TickerPlaceholder,
		EthUSDT:   models.TickerPlaceholder,
		UsdKRW:    utils.FormatNumber(current.UsdKRW, 1),
		Kimp:      utils.FormatPercent(current.Kimp),
		Timestamp: current.Timestamp,
	}

	tr := utils.LastNHours(now, 1)
	history, err := s.kimpRepo.GetRange(ctx, tr.Start, tr.End)
	if err != nil {
		s.log.Warn("ticker: failed to read kimp history", utils.Err(err))
	} else if len(history) > 0 {
		change := utils.Round(utils.KimpProfit(history[0].Kimp, current.Kimp), 2)
		ticker.KimpChange = &change
	}

	return ticker
}
