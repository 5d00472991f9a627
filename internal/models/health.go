package models

import "time"

// Общий статус системы
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// ServiceStatus - результат проверки одной зависимости
type ServiceStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	LatencyMs *float64  `json:"latency_ms"`
	Error     *string   `json:"error"`
	LastCheck time.Time `json:"last_check"`
}

// SystemHealth - ответ GET /api/health
type SystemHealth struct {
	Status    string                    `json:"status"`
	Services  map[string]*ServiceStatus `json:"services"`
	Timestamp time.Time                 `json:"timestamp"`
}

// OverallStatus сводит статусы сервисов: все живы - healthy,
// хотя бы один - degraded, ни одного - unhealthy
func OverallStatus(services map[string]*ServiceStatus) string {
	if len(services) == 0 {
		return HealthUnhealthy
	}
	healthy := 0
	for _, s := range services {
		if s.Healthy {
			healthy++
		}
	}
	switch {
	case healthy == len(services):
		return HealthHealthy
	case healthy > 0:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}
