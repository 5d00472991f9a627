package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"kimpdash/internal/models"
	"kimpdash/internal/service"
)

// ErrMockDatabase - ошибка БД для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Emergency Service ============

// MockEmergencyService мок для EmergencyServiceInterface
type MockEmergencyService struct {
	mu       sync.Mutex
	status   *models.EmergencyStatus
	warning  string
	reasons  []string
	deactivs int
	at       time.Time
}

// NewMockEmergencyService создает мок без записи
func NewMockEmergencyService() *MockEmergencyService {
	return &MockEmergencyService{
		status: &models.EmergencyStatus{Active: false, Reason: models.ReasonNoRecord},
		at:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (m *MockEmergencyService) IsActive(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Active
}

func (m *MockEmergencyService) Activate(ctx context.Context, reason string) *models.EmergencyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reason == "" {
		reason = models.ReasonManual
	}
	m.reasons = append(m.reasons, reason)
	at := m.at
	m.status = &models.EmergencyStatus{Active: true, ActivatedAt: &at, Reason: reason}
	return &models.EmergencyResult{Success: true, Active: true, ActivatedAt: &at, Reason: reason, Warning: m.warning}
}

func (m *MockEmergencyService) Deactivate(ctx context.Context) *models.EmergencyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deactivs++
	at := m.at
	m.status = &models.EmergencyStatus{Active: false, DeactivatedAt: &at}
	return &models.EmergencyResult{Success: true, Active: false, DeactivatedAt: &at, Warning: m.warning}
}

func (m *MockEmergencyService) GetStatus(ctx context.Context) *models.EmergencyStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetStatus подменяет статус
func (m *MockEmergencyService) SetStatus(status *models.EmergencyStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// SetWarning включает warning в ответах activate/deactivate
func (m *MockEmergencyService) SetWarning(warning string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warning = warning
}

// Reasons возвращает причины всех вызовов Activate
func (m *MockEmergencyService) Reasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reasons...)
}

// ============ Mock Kimp Service ============

// MockKimpService мок для KimpServiceInterface
type MockKimpService struct {
	current    *models.KimpData
	currentErr error
	historyErr error
	lastHours  int
	ticker     *models.Ticker
}

func (m *MockKimpService) GetCurrent(ctx context.Context) (*models.KimpData, error) {
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	return m.current, nil
}

func (m *MockKimpService) GetHistory(ctx context.Context, hours int) (*models.KimpHistory, error) {
	m.lastHours = hours
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	data := []*models.KimpData{}
	if m.current != nil {
		data = append(data, m.current)
	}
	return &models.KimpHistory{Data: data, Count: len(data), PeriodHours: hours}, nil
}

func (m *MockKimpService) GetTicker(ctx context.Context) *models.Ticker {
	if m.ticker == nil {
		return models.EmptyTicker(time.Now())
	}
	return m.ticker
}

// ============ Mock Position / PnL Services ============

// MockPositionService мок для PositionServiceInterface
type MockPositionService struct {
	view *models.PositionView
	err  error
}

func (m *MockPositionService) GetPosition(ctx context.Context) (*models.PositionView, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.view == nil {
		return &models.PositionView{Positions: []models.PositionRow{}}, nil
	}
	return m.view, nil
}

// MockPnLService мок для PnLServiceInterface
type MockPnLService struct {
	pnl *models.PnL
	err error
}

func (m *MockPnLService) GetPnL(ctx context.Context) (*models.PnL, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.pnl == nil {
		return &models.PnL{FeeRate: 0.38}, nil
	}
	return m.pnl, nil
}

// ============ Mock Health / Trade Services ============

// MockHealthService мок для HealthServiceInterface
type MockHealthService struct {
	health *models.SystemHealth
}

func (m *MockHealthService) CheckAll(ctx context.Context) *models.SystemHealth {
	return m.health
}

// MockTradeService мок для TradeServiceInterface
type MockTradeService struct {
	trades    []*models.Trade
	err       error
	lastLimit int
}

func (m *MockTradeService) GetTrades(ctx context.Context, limit int) (*models.TradeHistory, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	trades := m.trades
	if trades == nil {
		trades = []*models.Trade{}
	}
	return &models.TradeHistory{Trades: trades, Total: len(trades), Limit: limit}, nil
}

// Проверяем, что моки подходят под интерфейсы
var _ service.EmergencyServiceInterface = (*MockEmergencyService)(nil)
var _ service.KimpServiceInterface = (*MockKimpService)(nil)
var _ service.PositionServiceInterface = (*MockPositionService)(nil)
var _ service.PnLServiceInterface = (*MockPnLService)(nil)
var _ service.HealthServiceInterface = (*MockHealthService)(nil)
var _ service.TradeServiceInterface = (*MockTradeService)(nil)
