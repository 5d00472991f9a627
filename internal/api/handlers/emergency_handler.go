package handlers

import (
	"io"
	"net/http"
	"strings"

	"kimpdash/internal/service"
	"kimpdash/pkg/utils"
)

// EmergencyHandler - HTTP обертка над контроллером аварийной остановки
//
// Endpoints:
// - GET  /api/emergency/status
// - POST /api/emergency/activate?reason=...
// - POST /api/emergency/deactivate
//
// Контроллер не возвращает ошибок: сбои хранилища уже превращены
// в fail-safe статус или warning, поэтому ответы всегда 200.
type EmergencyHandler struct {
	emergency service.EmergencyServiceInterface
	log       *utils.Logger
}

// NewEmergencyHandler создает EmergencyHandler
func NewEmergencyHandler(emergency service.EmergencyServiceInterface) *EmergencyHandler {
	return &EmergencyHandler{
		emergency: emergency,
		log:       utils.L().WithComponent("emergency_handler"),
	}
}

// activateRequest - необязательное тело POST /api/emergency/activate
type activateRequest struct {
	Reason string `json:"reason"`
}

// GetStatus возвращает текущую запись emergency_stop
//
// GET /api/emergency/status
//
// Response 200 OK:
//
//	{"active": true, "activated_at": "2026-01-02T03:04:05Z", "reason": "manual", "updated_at": "..."}
//	{"active": false, "reason": "no_record"}
//	{"active": true, "reason": "error: connection refused"}
func (h *EmergencyHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.emergency == nil {
		respondServiceNotInitialized(w, "emergency")
		return
	}

	respondWithJSON(w, http.StatusOK, h.emergency.GetStatus(r.Context()))
}

// Activate включает аварийную остановку
//
// POST /api/emergency/activate?reason=api_error
//
// Причина берется из query, иначе из JSON тела {"reason": "..."}.
// Пустая причина - "manual". Запрос на остановку не отклоняется никогда:
// неразборчивое тело дает "manual", длинная причина обрезается.
//
// Response 200 OK:
//
//	{"success": true, "active": true, "activated_at": "...", "reason": "api_error"}
//	{"success": true, "active": true, "activated_at": "...", "reason": "manual", "warning": "state not persisted"}
func (h *EmergencyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if h.emergency == nil {
		respondServiceNotInitialized(w, "emergency")
		return
	}

	raw := r.URL.Query().Get("reason")
	if raw == "" {
		body, err := readActivateBody(r)
		if err != nil {
			h.log.Warn("unreadable activate body, using default reason",
				utils.ClientIP(r.RemoteAddr), utils.Err(err))
			body = activateRequest{}
		}
		raw = body.Reason
	}

	respondWithJSON(w, http.StatusOK, h.emergency.Activate(r.Context(), utils.NormalizeReason(raw)))
}

// Deactivate снимает аварийную остановку
//
// POST /api/emergency/deactivate
//
// Response 200 OK:
//
//	{"success": true, "active": false, "deactivated_at": "..."}
func (h *EmergencyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if h.emergency == nil {
		respondServiceNotInitialized(w, "emergency")
		return
	}

	respondWithJSON(w, http.StatusOK, h.emergency.Deactivate(r.Context()))
}

// readActivateBody разбирает необязательное JSON тело. Пустое тело допустимо.
func readActivateBody(r *http.Request) (activateRequest, error) {
	var req activateRequest
	if r.Body == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return req, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		return req, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return req, nil
	}
	err = json.Unmarshal(data, &req)
	return req, err
}
