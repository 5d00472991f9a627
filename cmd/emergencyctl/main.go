package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kimpdash/internal/bootstrap"
	"kimpdash/internal/cli"
	"kimpdash/internal/config"
	"kimpdash/internal/service"
	"kimpdash/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.RootCmd(openController).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openController собирает тот же контроллер, что и сервер: конфигурация,
// хранилище по STORE_BACKEND и notifier. Недоступная БД не ошибка:
// status покажет active с причиной error, activate пройдет с warning.
func openController(ctx context.Context) (cli.Controller, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// Логи CLI не смешиваются с выводом команд
	logCfg := bootstrap.LogConfig(cfg.Logging)
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger := utils.InitGlobalLogger(logCfg)

	var db *sql.DB
	if cfg.Store.Backend == config.BackendPostgres {
		db, err = bootstrap.OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
	}

	store, err := bootstrap.OpenStateStore(ctx, cfg.Store, db)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}

	controller := service.NewEmergencyService(store, bootstrap.NewNotifier(cfg.Telegram), bootstrap.EmergencyOptions(cfg))

	cleanup := func() {
		store.Close()
		if db != nil {
			db.Close()
		}
		logger.Sync()
	}
	return controller, cleanup, nil
}
