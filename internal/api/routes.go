package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kimpdash/internal/api/handlers"
	"kimpdash/internal/api/middleware"
	"kimpdash/internal/service"
	"kimpdash/internal/websocket"
	"kimpdash/pkg/ratelimit"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	EmergencyService service.EmergencyServiceInterface
	KimpService      service.KimpServiceInterface
	PositionService  service.PositionServiceInterface
	PnLService       service.PnLServiceInterface
	HealthService    service.HealthServiceInterface
	TradeService     service.TradeServiceInterface

	Hub *websocket.Hub

	// EmergencyLimiter ограничивает activate/deactivate по IP (nil - без ограничения)
	EmergencyLimiter *ratelimit.KeyedLimiter

	AllowedOrigins      []string
	MetricsUsername     string
	MetricsPasswordHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/
//
//	├── /emergency/
//	│   ├── GET  /status - статус аварийной остановки
//	│   ├── POST /activate?reason= - включить
//	│   └── POST /deactivate - снять (rate limit)
//	├── GET /kimp/current - последняя запись премии
//	├── GET /kimp?hours=N - история премии
//	├── GET /ticker - бегущая строка
//	├── GET /position - открытая позиция
//	├── GET /pnl - PnL открытой позиции
//	├── GET /health - состояние БД и бирж
//	└── GET /trades?limit=N - история сделок
//
// /ws/stream - WebSocket для emergencyUpdate/kimpUpdate/tickerUpdate
// /health - liveness
// /metrics - Prometheus (опционально basic auth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. RateLimit (только deactivate)
func SetupRoutes(deps *Dependencies) *mux.Router {
	if deps == nil {
		deps = &Dependencies{}
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(deps.AllowedOrigins))

	api := router.PathPrefix("/api").Subrouter()

	// Emergency routes: handler регистрируется всегда, без сервиса отвечает 500
	emergencyHandler := handlers.NewEmergencyHandler(deps.EmergencyService)
	api.HandleFunc("/emergency/status", emergencyHandler.GetStatus).Methods(http.MethodGet)

	// Активация идемпотентна и никогда не ограничивается: лимит только на снятие остановки
	api.HandleFunc("/emergency/activate", emergencyHandler.Activate).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/emergency/deactivate",
		middleware.RateLimit(deps.EmergencyLimiter)(http.HandlerFunc(emergencyHandler.Deactivate)),
	).Methods(http.MethodPost, http.MethodOptions)

	// Market routes
	if deps.KimpService != nil {
		kimpHandler := handlers.NewKimpHandler(deps.KimpService)
		api.HandleFunc("/kimp/current", kimpHandler.GetCurrent).Methods(http.MethodGet)
		api.HandleFunc("/kimp", kimpHandler.GetHistory).Methods(http.MethodGet)
		api.HandleFunc("/ticker", kimpHandler.GetTicker).Methods(http.MethodGet)
	}

	// Position routes
	if deps.PositionService != nil || deps.PnLService != nil {
		positionHandler := handlers.NewPositionHandler(deps.PositionService, deps.PnLService)
		api.HandleFunc("/position", positionHandler.GetPosition).Methods(http.MethodGet)
		api.HandleFunc("/pnl", positionHandler.GetPnL).Methods(http.MethodGet)
	}

	if deps.HealthService != nil {
		healthHandler := handlers.NewHealthHandler(deps.HealthService)
		api.HandleFunc("/health", healthHandler.GetHealth).Methods(http.MethodGet)
	}

	if deps.TradeService != nil {
		tradeHandler := handlers.NewTradeHandler(deps.TradeService)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods(http.MethodGet)
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", deps.Hub.ServeWS).Methods(http.MethodGet)
	}

	// Prometheus
	metricsAuth := middleware.BasicAuth(deps.MetricsUsername, deps.MetricsPasswordHash, "metrics")
	router.Handle("/metrics", metricsAuth(promhttp.Handler())).Methods(http.MethodGet)

	// Liveness
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}
