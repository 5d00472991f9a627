package websocket

import "strings"

// OriginPolicy - список Origin, которым разрешено подключаться к /ws/stream.
// После создания только читается, поэтому безопасен для горутин.
type OriginPolicy struct {
	allowed  map[string]struct{}
	allowAll bool
}

// NewOriginPolicy строит политику из CORS_ALLOWED_ORIGINS.
// Пустой список или "*" означает без ограничений.
// Сравнение без учета регистра и завершающего "/".
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		origin = normalizeOrigin(origin)
		switch origin {
		case "":
		case "*":
			p.allowAll = true
		default:
			p.allowed[origin] = struct{}{}
		}
	}
	if len(p.allowed) == 0 {
		p.allowAll = true
	}
	return p
}

// Allows - можно ли принять соединение с этим Origin.
// Без Origin приходят не браузерные клиенты (curl, emergencyctl), их пускаем.
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	_, ok := p.allowed[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}
