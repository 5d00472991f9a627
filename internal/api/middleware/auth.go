package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"kimpdash/pkg/crypto"
)

// BasicAuth - middleware для защиты служебных endpoints (/metrics)
//
// Пароль хранится только как bcrypt хеш (METRICS_PASSWORD_HASH),
// логин сравнивается за постоянное время.
// Пустой username отключает проверку.
//
// Использование:
//
//	router.Handle("/metrics", middleware.BasicAuth("ops", hash, "metrics")(promhttp.Handler()))
func BasicAuth(username, passwordHash, realm string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if username == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !crypto.CheckCredentials(user, pass, username, passwordHash) {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
