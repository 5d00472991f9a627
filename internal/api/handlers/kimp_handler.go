package handlers

import (
	"errors"
	"net/http"

	"kimpdash/internal/service"
	"kimpdash/pkg/utils"
)

// Значение hours по умолчанию для GET /api/kimp
const defaultHistoryHours = 1

// KimpHandler отдает данные кимчи-премии из kimp_1m
//
// Endpoints:
// - GET /api/kimp/current - последняя запись
// - GET /api/kimp?hours=N - история за N часов (1..168)
// - GET /api/ticker - значения для бегущей строки
type KimpHandler struct {
	kimpService service.KimpServiceInterface
}

// NewKimpHandler создает KimpHandler
func NewKimpHandler(kimpService service.KimpServiceInterface) *KimpHandler {
	return &KimpHandler{kimpService: kimpService}
}

// GetCurrent возвращает последнюю запись премии
//
// GET /api/kimp/current
//
// Response 200 OK:
//
//	{"kimp": 2.35, "btc_krw": 145000000, "btc_usd": 101000, "usd_krw": 1399.5, "timestamp": "..."}
//
// Response 503 Service Unavailable - в таблице нет данных
func (h *KimpHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	if h.kimpService == nil {
		respondServiceNotInitialized(w, "kimp")
		return
	}

	data, err := h.kimpService.GetCurrent(r.Context())
	if errors.Is(err, service.ErrKimpUnavailable) {
		respondWithError(w, http.StatusServiceUnavailable, "No kimp data available", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get kimp", err)
		return
	}

	respondWithJSON(w, http.StatusOK, data)
}

// GetHistory возвращает историю премии
//
// GET /api/kimp?hours=24
//
// Response 200 OK:
//
//	{"data": [...], "count": 1440, "period_hours": 24}
//
// Response 400 Bad Request - hours не число или вне 1..168
func (h *KimpHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.kimpService == nil {
		respondServiceNotInitialized(w, "kimp")
		return
	}

	hours, err := queryInt(r, "hours", defaultHistoryHours)
	if err == nil {
		err = utils.ValidateHours(hours)
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid hours", err)
		return
	}

	history, err := h.kimpService.GetHistory(r.Context(), hours)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get kimp history", err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

// GetTicker возвращает данные бегущей строки.
// При отсутствии данных поля заполнены "-", код всегда 200.
//
// GET /api/ticker
func (h *KimpHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	if h.kimpService == nil {
		respondServiceNotInitialized(w, "kimp")
		return
	}

	respondWithJSON(w, http.StatusOK, h.kimpService.GetTicker(r.Context()))
}
