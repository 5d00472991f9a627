// Package bootstrap собирает общие зависимости для cmd/server и cmd/emergencyctl:
// логгер, подключение к БД, хранилище состояния и notifier.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"kimpdash/internal/config"
	"kimpdash/internal/notify"
	"kimpdash/internal/repository"
	"kimpdash/internal/service"
	"kimpdash/pkg/utils"
)

// ErrDatabaseRequired - бэкенд postgres выбран, но подключения к БД нет
var ErrDatabaseRequired = errors.New("postgres state store requires a database connection")

// Параметры пула соединений
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	pingTimeout     = 5 * time.Second
)

// LogConfig переводит секцию logging в настройки логгера
func LogConfig(cfg config.LoggingConfig) utils.LogConfig {
	return utils.LogConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   true,
	}
}

// OpenDatabase создает пул соединений с PostgreSQL.
// Недоступная при старте БД не ошибка: пул подключится при первом запросе,
// а контроллер до тех пор отвечает по fail-safe правилам. Ошибка пинга только логируется.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		utils.L().Warn("database unavailable at startup",
			utils.String("dsn", cfg.DSNWithoutPassword()),
			utils.Err(err))
		return db, nil
	}

	utils.L().Info("connected to database", utils.String("dsn", cfg.DSNWithoutPassword()))
	return db, nil
}

// OpenStateStore выбирает хранилище флага по STORE_BACKEND.
// Для postgres создает таблицу system_status; если БД недоступна,
// таблица создастся при первой записи.
func OpenStateStore(ctx context.Context, cfg config.StoreConfig, db *sql.DB) (service.StateStore, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		if db == nil {
			return nil, ErrDatabaseRequired
		}
		repo := repository.NewSystemStateRepository(db)

		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			utils.L().Warn("system_status schema not ensured, will retry on first write",
				utils.Backend(cfg.Backend),
				utils.Err(err))
		}
		return repo, nil

	case config.BackendBadger:
		store, err := repository.OpenBadgerStateStore(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMemory:
		utils.L().Warn("using in-memory emergency state store, state is not shared and is lost on restart")
		return repository.NewMemoryStateStore(), nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// NewNotifier возвращает Telegram + лог, если Telegram настроен, иначе только лог.
// Telegram не опрашивается при старте: недоступный API не отключает уведомления.
func NewNotifier(cfg config.TelegramConfig) service.Notifier {
	logNotifier := notify.NewLogNotifier()
	if !cfg.Enabled() {
		return logNotifier
	}

	tg, err := notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.NotifyTimeout)
	if err != nil {
		utils.L().Warn("telegram notifier disabled", utils.Err(err))
		return logNotifier
	}
	return notify.Multi{tg, logNotifier}
}

// EmergencyOptions переводит конфигурацию в параметры контроллера
func EmergencyOptions(cfg *config.Config) service.EmergencyOptions {
	return service.EmergencyOptions{
		StoreTimeout:  cfg.Store.Timeout,
		NotifyTimeout: cfg.Telegram.NotifyTimeout,
		WriteAttempts: cfg.Store.WriteRetries,
	}
}
