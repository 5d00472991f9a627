package handlers

import (
	"net/http"

	"kimpdash/internal/service"
	"kimpdash/pkg/utils"
)

// TradeHandler отдает историю закрытых сделок
type TradeHandler struct {
	tradeService service.TradeServiceInterface
}

// NewTradeHandler создает TradeHandler
func NewTradeHandler(tradeService service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// GetTrades возвращает последние сделки
//
// GET /api/trades?limit=50
//
// Response 200 OK:
//
//	{"trades": [...], "total": 120, "limit": 50}
//
// Response 400 Bad Request - limit не число или вне 1..500
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if h.tradeService == nil {
		respondServiceNotInitialized(w, "trade")
		return
	}

	limit, err := queryInt(r, "limit", service.DefaultTradesLimit)
	if err == nil {
		err = utils.ValidateLimit(limit)
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}

	trades, err := h.tradeService.GetTrades(r.Context(), limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get trades", err)
		return
	}

	respondWithJSON(w, http.StatusOK, trades)
}
