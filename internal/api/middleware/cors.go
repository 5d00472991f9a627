package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// CORS - middleware для Cross-Origin Resource Sharing
//
// origins - список разрешенных доменов (CORS_ALLOWED_ORIGINS).
// Пустой список или "*" разрешает любой Origin без credentials.
//
// Заголовки:
// - Access-Control-Allow-Origin: конкретный домен или *
// - Access-Control-Allow-Methods: GET, POST, OPTIONS
// - Access-Control-Allow-Headers: Content-Type, Authorization, X-Request-ID
// - Access-Control-Max-Age: 86400 (24 часа)
func CORS(origins []string) mux.MiddlewareFunc {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			allowAll = true
		default:
			allowed[origin] = true
		}
	}
	if len(allowed) == 0 {
		allowAll = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			case origin == "" || allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			// Для неразрешенных origins заголовок не ставим - браузер заблокирует

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
