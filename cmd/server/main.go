package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kimpdash/internal/api"
	"kimpdash/internal/bootstrap"
	"kimpdash/internal/config"
	"kimpdash/internal/repository"
	"kimpdash/internal/service"
	"kimpdash/internal/websocket"
	"kimpdash/pkg/ratelimit"
	"kimpdash/pkg/utils"
)

// Время жизни неактивного ключа rate limiter и период его очистки
const limiterTTL = 10 * time.Minute

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(bootstrap.LogConfig(cfg.Logging))
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", utils.Err(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных.
	// Недоступная БД не мешает старту: контроллер отвечает fail-safe, пул переподключится.
	// Ошибка здесь - только неверная конфигурация драйвера.
	var dbErr error
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		if cfg.Store.Backend == config.BackendPostgres {
			return err
		}
		logger.Warn("database disabled, market endpoints unavailable", utils.Err(err))
		db, dbErr = nil, err
	} else {
		defer db.Close()
	}

	// Хранилище флага аварийной остановки
	store, err := bootstrap.OpenStateStore(ctx, cfg.Store, db)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	logger.Info("emergency state store ready", utils.Backend(cfg.Store.Backend))

	// WebSocket hub
	hub := websocket.NewHub()
	hub.SetAllowedOrigins(cfg.Server.AllowedOrigins)
	go hub.Run()
	defer hub.Stop()

	// Контроллер аварийной остановки: один экземпляр на процесс
	emergency := service.NewEmergencyService(store, bootstrap.NewNotifier(cfg.Telegram), bootstrap.EmergencyOptions(cfg))
	emergency.OnChange(hub.BroadcastEmergencyUpdate)
	hub.SetWelcome(func(ctx context.Context) interface{} {
		return websocket.NewEmergencyUpdateMessage(emergency.GetStatus(ctx))
	})

	limiter := ratelimit.NewKeyedLimiter(cfg.Security.EmergencyRate, cfg.Security.EmergencyBurst, limiterTTL)
	go cleanupLimiter(ctx, limiter)

	deps := &api.Dependencies{
		EmergencyService:    emergency,
		Hub:                 hub,
		EmergencyLimiter:    limiter,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		MetricsUsername:     cfg.Security.MetricsUsername,
		MetricsPasswordHash: cfg.Security.MetricsPasswordHash,
	}
	wireDashboard(ctx, cfg, db, dbErr, store, hub, deps)

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Начальное значение метрики и лог статуса при старте
	status := emergency.GetStatus(ctx)
	logger.Info("emergency stop status", utils.Active(status.Active), utils.Reason(status.Reason))

	// Graceful shutdown
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", utils.Err(err))
	}

	// Дожидаемся уведомлений, отправленных последними запросами
	if err := emergency.Close(shutdownCtx); err != nil {
		logger.Warn("emergency notifications not drained", utils.Err(err))
	}

	logger.Info("server exited")
	return nil
}

// wireDashboard подключает сервисы чтения, если есть БД
func wireDashboard(ctx context.Context, cfg *config.Config, db *sql.DB, dbErr error, store service.StateStore, hub *websocket.Hub, deps *api.Dependencies) {
	var storePinger service.Pinger
	if cfg.Store.Backend != config.BackendPostgres {
		storePinger = store
	}

	var dbPinger service.Pinger = downPinger{err: dbErr}
	var kimpRepo *repository.KimpRepository
	if db != nil {
		kimpRepo = repository.NewKimpRepository(db)
		dbPinger = kimpRepo
	}

	deps.HealthService = service.NewHealthService(dbPinger, storePinger, service.HealthConfig{
		UpbitURL:   cfg.Market.UpbitURL,
		BinanceURL: cfg.Market.BinanceURL,
		Timeout:    cfg.Market.APITimeout,
	})

	if db == nil {
		return
	}

	positionRepo := repository.NewPositionRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	kimpService := service.NewKimpService(kimpRepo)
	deps.KimpService = kimpService
	deps.PositionService = service.NewPositionService(positionRepo, kimpRepo)
	deps.PnLService = service.NewPnLService(positionRepo, kimpRepo, cfg.Market.FeeRate)
	deps.TradeService = service.NewTradeService(tradeRepo)

	go websocket.NewStreamer(hub, kimpService, websocket.DefaultStreamInterval).Run(ctx)
}

// cleanupLimiter периодически удаляет неактивные IP из лимитера
func cleanupLimiter(ctx context.Context, limiter *ratelimit.KeyedLimiter) {
	ticker := time.NewTicker(limiterTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Cleanup(); n > 0 {
				utils.L().Debug("rate limiter cleanup", utils.Int("removed", n))
			}
		}
	}
}

// downPinger отвечает ошибкой подключения, с которой не удалось открыть БД
type downPinger struct{ err error }

func (p downPinger) Ping(context.Context) error { return p.err }
