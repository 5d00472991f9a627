package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"kimpdash/internal/metrics"
	"kimpdash/pkg/utils"
)

// RequestIDHeader - заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// responseWriter запоминает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack нужен для апгрейда /ws/stream
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Logging - middleware для логирования HTTP запросов
//
// Присваивает запросу X-Request-ID (берет из запроса или генерирует uuid),
// после ответа пишет method, path, status, duration, client_ip, size
// и записывает латентность в метрику по шаблону маршрута.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, routeTemplate(r), wrapped.statusCode, duration)

		fields := []utils.Field{
			utils.String("method", r.Method),
			utils.String("path", r.URL.Path),
			utils.Int("status", wrapped.statusCode),
			utils.Dur("duration", duration),
			utils.ClientIP(ClientIP(r)),
			utils.Int64("bytes", wrapped.written),
			utils.RequestID(requestID),
		}

		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			utils.L().Error("http request", fields...)
		case wrapped.statusCode >= http.StatusBadRequest:
			utils.L().Warn("http request", fields...)
		default:
			utils.L().Debug("http request", fields...)
		}
	})
}

// routeTemplate возвращает шаблон маршрута, чтобы не плодить метки по путям
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// ClientIP возвращает IP клиента из RemoteAddr
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
