package handlers

import (
	"net/http"

	"kimpdash/internal/service"
)

// HealthHandler отдает состояние зависимостей дашборда
type HealthHandler struct {
	healthService service.HealthServiceInterface
}

// NewHealthHandler создает HealthHandler
func NewHealthHandler(healthService service.HealthServiceInterface) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// GetHealth проверяет БД и биржи
//
// GET /api/health
//
// Response 200 OK:
//
//	{"status": "degraded", "services": {"database": {...}, "upbit": {...}, "binance": {...}}, "timestamp": "..."}
//
// Код всегда 200: деградация - это данные для дашборда, а не ошибка запроса.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if h.healthService == nil {
		respondServiceNotInitialized(w, "health")
		return
	}

	respondWithJSON(w, http.StatusOK, h.healthService.CheckAll(r.Context()))
}
