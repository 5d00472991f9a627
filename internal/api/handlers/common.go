package handlers

import (
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"kimpdash/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondWithJSON пишет JSON ответ с кодом
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		utils.L().Error("failed to encode response", utils.Err(err))
	}
}

// respondWithError пишет ErrorResponse. err может быть nil.
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondWithJSON(w, code, resp)
}

// respondServiceNotInitialized - ответ для handler без сервиса
func respondServiceNotInitialized(w http.ResponseWriter, name string) {
	respondWithError(w, http.StatusInternalServerError, name+" service not initialized", nil)
}

// queryInt читает целый параметр запроса. Пустое значение - def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
