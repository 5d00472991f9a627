package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики дашборда
// ============================================================
//
// Главное - состояние аварийной остановки: флаг, переходы,
// ошибки хранилища и неудачные уведомления.
// Остальное - HTTP латентность, websocket клиенты, проверки бирж.

// ============ Аварийная остановка ============

// EmergencyActive - текущее значение флага (1 = торговля запрещена)
var EmergencyActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "kimp",
		Subsystem: "emergency",
		Name:      "active",
		Help:      "Emergency stop flag as last observed by the controller (1 = active)",
	},
)

// EmergencyTransitions - вызовы activate/deactivate и удалось ли сохранить
var EmergencyTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kimp",
		Subsystem: "emergency",
		Name:      "transitions_total",
		Help:      "Emergency stop activate/deactivate calls by persistence outcome",
	},
	[]string{"action", "persisted"},
)

// EmergencyStoreErrors - ошибки хранилища по операциям (read/write)
var EmergencyStoreErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kimp",
		Subsystem: "emergency",
		Name:      "store_errors_total",
		Help:      "Failed emergency state store operations",
	},
	[]string{"op"},
)

// EmergencyNotifyFailures - неудачные уведомления
var EmergencyNotifyFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kimp",
		Subsystem: "emergency",
		Name:      "notify_failures_total",
		Help:      "Emergency notifications that failed or panicked",
	},
	[]string{"kind"},
)

// ============ HTTP / WebSocket ============

// HTTPRequestDuration - латентность HTTP запросов
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "kimp",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// WSClients - подключенные websocket клиенты
var WSClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "kimp",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected websocket clients",
	},
)

// WSDroppedMessages - сообщения, не доставленные медленным клиентам
var WSDroppedMessages = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "kimp",
		Subsystem: "ws",
		Name:      "dropped_messages_total",
		Help:      "Broadcast messages dropped because of a full buffer",
	},
)

// ============ Рынок и биржи ============

// HealthCheckLatency - латентность проверок сервисов в миллисекундах
var HealthCheckLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "kimp",
		Subsystem: "health",
		Name:      "check_latency_ms",
		Help:      "Latency of dependency health checks in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"service"},
)

// ServiceUp - результат последней проверки сервиса
var ServiceUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "kimp",
		Subsystem: "health",
		Name:      "service_up",
		Help:      "Last health check result per service (1 = healthy)",
	},
	[]string{"service"},
)

// Premium - последняя прочитанная кимчи-премия
var Premium = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "kimp",
		Subsystem: "market",
		Name:      "premium_percent",
		Help:      "Latest observed kimchi premium in percent",
	},
)

// ============ Helpers ============

// SetEmergencyActive обновляет флаг
func SetEmergencyActive(active bool) {
	EmergencyActive.Set(boolToFloat(active))
}

// RecordTransition учитывает activate/deactivate
func RecordTransition(action string, persisted bool) {
	EmergencyTransitions.WithLabelValues(action, strconv.FormatBool(persisted)).Inc()
}

// RecordStoreError учитывает ошибку хранилища
func RecordStoreError(op string) {
	EmergencyStoreErrors.WithLabelValues(op).Inc()
}

// RecordNotifyFailure учитывает неудачное уведомление
func RecordNotifyFailure(kind string) {
	EmergencyNotifyFailures.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest записывает латентность запроса
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordHealthCheck записывает результат проверки сервиса
func RecordHealthCheck(service string, healthy bool, latencyMs float64) {
	HealthCheckLatency.WithLabelValues(service).Observe(latencyMs)
	ServiceUp.WithLabelValues(service).Set(boolToFloat(healthy))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
