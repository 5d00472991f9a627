package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"kimpdash/internal/metrics"
	"kimpdash/internal/models"
	"kimpdash/pkg/utils"
)

// Имена проверяемых сервисов
const (
	ServiceDatabase   = "database"
	ServiceStateStore = "state_store"
	ServiceUpbit      = "upbit"
	ServiceBinance    = "binance"
)

// Тексты ошибок в ответе /api/health
const (
	errConnectionFailed = "Connection failed"
	errAPIUnreachable   = "API unreachable"
)

// Pinger - зависимость, которую можно проверить запросом
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthConfig - параметры проверок бирж
type HealthConfig struct {
	UpbitURL   string
	BinanceURL string
	Timeout    time.Duration
}

// HealthService проверяет БД, хранилище состояния и публичные API бирж параллельно
type HealthService struct {
	db     Pinger
	store  Pinger // nil, если состояние хранится в той же БД
	client *resty.Client
	cfg    HealthConfig
	now    func() time.Time
	log    *utils.Logger
}

// NewHealthService создает новый экземпляр HealthService
func NewHealthService(db Pinger, store Pinger, cfg HealthConfig) *HealthService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "kimpdash-health/1.0")

	return &HealthService{
		db:     db,
		store:  store,
		client: client,
		cfg:    cfg,
		now:    time.Now,
		log:    utils.L().WithComponent("health"),
	}
}

// CheckAll запускает все проверки одновременно и сводит общий статус
func (s *HealthService) CheckAll(ctx context.Context) *models.SystemHealth {
	now := s.now().UTC()

	checks := map[string]func(context.Context) (float64, error){
		ServiceUpbit:   s.httpCheck(s.cfg.UpbitURL),
		ServiceBinance: s.httpCheck(s.cfg.BinanceURL),
	}
	if s.db != nil {
		checks[ServiceDatabase] = pingCheck(s.db)
	}
	if s.store != nil {
		checks[ServiceStateStore] = pingCheck(s.store)
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		services = make(map[string]*models.ServiceStatus, len(checks))
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check func(context.Context) (float64, error)) {
			defer wg.Done()
			status := s.runCheck(ctx, name, check, now)

			mu.Lock()
			services[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return &models.SystemHealth{
		Status:    models.OverallStatus(services),
		Services:  services,
		Timestamp: now,
	}
}

func (s *HealthService) runCheck(ctx context.Context, name string, check func(context.Context) (float64, error), now time.Time) *models.ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	status := &models.ServiceStatus{Name: name, LastCheck: now}

	latency, err := check(ctx)
	if err != nil {
		s.log.Warn("health check failed", utils.String("service", name), utils.Latency(latency), utils.Err(err))
		msg := errAPIUnreachable
		if name == ServiceDatabase || name == ServiceStateStore {
			msg = errConnectionFailed
		}
		status.Error = &msg
		metrics.RecordHealthCheck(name, false, latency)
		return status
	}

	status.Healthy = true
	status.LatencyMs = &latency
	metrics.RecordHealthCheck(name, true, latency)
	return status
}

// httpCheck - GET запрос, здоров только при 200
func (s *HealthService) httpCheck(url string) func(context.Context) (float64, error) {
	return func(ctx context.Context) (float64, error) {
		start := time.Now()
		resp, err := s.client.R().SetContext(ctx).Get(url)
		latency := elapsedMs(start)
		if err != nil {
			return latency, err
		}
		if resp.StatusCode() != http.StatusOK {
			return latency, fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		return latency, nil
	}
}

func pingCheck(p Pinger) func(context.Context) (float64, error) {
	return func(ctx context.Context) (float64, error) {
		start := time.Now()
		err := p.Ping(ctx)
		return elapsedMs(start), err
	}
}

func elapsedMs(start time.Time) float64 {
	return utils.Round(float64(time.Since(start).Microseconds())/1000, 2)
}
