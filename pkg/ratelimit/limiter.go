package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter - token bucket на каждый ключ (обычно IP клиента)
//
// Используется для мутирующих эндпоинтов аварийной остановки:
// защищает флаг от "дребезга" при повторных нажатиях и скриптах.
//
//	limiter := NewKeyedLimiter(1, 5, 10*time.Minute) // 1 req/sec, burst 5
//	if !limiter.Allow(clientIP) { ... 429 ... }
type KeyedLimiter struct {
	rate  rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*entry
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter создает лимитер. ttl - время жизни неактивного ключа.
func NewKeyedLimiter(perSecond float64, burst int, ttl time.Duration) *KeyedLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &KeyedLimiter{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow забирает токен для ключа без ожидания
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.rate, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = now

	return e.limiter.AllowN(now, 1)
}

// Cleanup удаляет ключи, не использовавшиеся дольше ttl.
// Возвращает количество удаленных ключей.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := kl.now().Add(-kl.ttl)
	removed := 0
	for key, e := range kl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(kl.limiters, key)
			removed++
		}
	}
	return removed
}

// Len возвращает количество отслеживаемых ключей
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}
