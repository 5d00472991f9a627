package service

import (
	"context"
	"time"

	"kimpdash/internal/models"
	"kimpdash/internal/notify"
	"kimpdash/internal/repository"
)

// ============ Внешние зависимости сервисов ============

// StateStore - хранилище записей system_status: чтение и upsert по ключу.
// Отсутствие записи - repository.ErrStateNotFound.
type StateStore interface {
	Get(ctx context.Context, key string) (*models.SystemStatusRecord, error)
	Upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// Notifier - канал оператора для сообщений о переключении аварийной остановки
type Notifier interface {
	NotifyActivated(ctx context.Context, reason string, at time.Time) error
	NotifyDeactivated(ctx context.Context, at time.Time) error
}

// KimpRepositoryInterface определяет интерфейс репозитория премии
type KimpRepositoryInterface interface {
	GetLatest(ctx context.Context) (*models.KimpData, error)
	GetRange(ctx context.Context, from, to time.Time) ([]*models.KimpData, error)
	Ping(ctx context.Context) error
}

// PositionRepositoryInterface определяет интерфейс репозитория позиций
type PositionRepositoryInterface interface {
	GetOpen(ctx context.Context) (*models.Position, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	GetRecent(ctx context.Context, limit int) ([]*models.Trade, error)
	Count(ctx context.Context) (int, error)
}

// Проверяем, что реальные реализации подходят под интерфейсы
var _ StateStore = (*repository.SystemStateRepository)(nil)
var _ StateStore = (*repository.BadgerStateStore)(nil)
var _ StateStore = (*repository.MemoryStateStore)(nil)
var _ Notifier = (*notify.TelegramNotifier)(nil)
var _ Notifier = (*notify.LogNotifier)(nil)
var _ Notifier = notify.Multi(nil)
var _ KimpRepositoryInterface = (*repository.KimpRepository)(nil)
var _ PositionRepositoryInterface = (*repository.PositionRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// EmergencyServiceInterface - контроллер аварийной остановки
type EmergencyServiceInterface interface {
	IsActive(ctx context.Context) bool
	Activate(ctx context.Context, reason string) *models.EmergencyResult
	Deactivate(ctx context.Context) *models.EmergencyResult
	GetStatus(ctx context.Context) *models.EmergencyStatus
}

// KimpServiceInterface определяет интерфейс сервиса премии
type KimpServiceInterface interface {
	GetCurrent(ctx context.Context) (*models.KimpData, error)
	GetHistory(ctx context.Context, hours int) (*models.KimpHistory, error)
	GetTicker(ctx context.Context) *models.Ticker
}

// PositionServiceInterface определяет интерфейс сервиса позиции
type PositionServiceInterface interface {
	GetPosition(ctx context.Context) (*models.PositionView, error)
}

// PnLServiceInterface определяет интерфейс сервиса PnL
type PnLServiceInterface interface {
	GetPnL(ctx context.Context) (*models.PnL, error)
}

// HealthServiceInterface определяет интерфейс сервиса проверки здоровья
type HealthServiceInterface interface {
	CheckAll(ctx context.Context) *models.SystemHealth
}

// TradeServiceInterface определяет интерфейс сервиса истории сделок
type TradeServiceInterface interface {
	GetTrades(ctx context.Context, limit int) (*models.TradeHistory, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ EmergencyServiceInterface = (*EmergencyService)(nil)
var _ KimpServiceInterface = (*KimpService)(nil)
var _ PositionServiceInterface = (*PositionService)(nil)
var _ PnLServiceInterface = (*PnLService)(nil)
var _ HealthServiceInterface = (*HealthService)(nil)
var _ TradeServiceInterface = (*TradeService)(nil)
