package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"kimpdash/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Перехватывает panic, логирует значение и stack trace,
// возвращает клиенту 500 в формате {"error": ..., "details": ...}.
// Сервер продолжает обрабатывать последующие запросы.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				utils.L().Error("panic in http handler",
					utils.String("method", r.Method),
					utils.String("path", r.URL.Path),
					utils.RequestID(w.Header().Get(RequestIDHeader)),
					utils.Any("panic", err),
					utils.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":"internal server error","details":%q}`, fmt.Sprint(err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
