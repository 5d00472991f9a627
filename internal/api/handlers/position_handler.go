package handlers

import (
	"net/http"

	"kimpdash/internal/service"
)

// PositionHandler отдает открытую позицию и ее PnL
//
// Endpoints:
// - GET /api/position
// - GET /api/pnl
type PositionHandler struct {
	positionService service.PositionServiceInterface
	pnlService      service.PnLServiceInterface
}

// NewPositionHandler создает PositionHandler
func NewPositionHandler(positionService service.PositionServiceInterface, pnlService service.PnLServiceInterface) *PositionHandler {
	return &PositionHandler{
		positionService: positionService,
		pnlService:      pnlService,
	}
}

// GetPosition возвращает открытую позицию
//
// GET /api/position
//
// Response 200 OK:
//
//	{"has_position": false, "position": null, "positions": []}
//	{"has_position": true, "position": {...}, "invested": {...}, "positions": [{...}]}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	if h.positionService == nil {
		respondServiceNotInitialized(w, "position")
		return
	}

	view, err := h.positionService.GetPosition(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get position", err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// GetPnL возвращает прибыль по премии для открытой позиции
//
// GET /api/pnl
//
// Response 200 OK:
//
//	{"has_position": true, "entry_kimp": 1.2, "current_kimp": 2.5, "kimp_profit": 1.3,
//	 "fee_rate": 0.38, "net_profit": 0.92, "breakeven_kimp": 1.58, "is_profitable": true}
func (h *PositionHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	if h.pnlService == nil {
		respondServiceNotInitialized(w, "pnl")
		return
	}

	pnl, err := h.pnlService.GetPnL(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get pnl", err)
		return
	}

	respondWithJSON(w, http.StatusOK, pnl)
}
