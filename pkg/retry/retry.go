package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config - политика повторов с экспоненциальной задержкой.
//
// Задержка перед попыткой n+1: InitialDelay * Multiplier^n, не больше MaxDelay,
// плюс-минус JitterFactor. Ожидание никогда не переживает ctx.
type Config struct {
	MaxAttempts  int // включая первую
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0..1

	// RetryIf решает, повторять ли ошибку. По умолчанию IsRetryable.
	RetryIf func(error) bool

	// OnRetry вызывается перед ожиданием; attempt считается с 1
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig - 3 попытки с задержкой от 50ms
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// StoreConfig - запись emergency_stop. Весь бюджет ограничен STORE_TIMEOUT,
// поэтому задержки короткие.
func StoreConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = 25 * time.Millisecond
	cfg.MaxDelay = 500 * time.Millisecond
	return cfg
}

// NetworkConfig - Telegram и прочие внешние API
func NetworkConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.MaxDelay = 5 * time.Second
	cfg.JitterFactor = 0.2
	return cfg
}

// withDefaults подставляет значения DefaultConfig вместо нулевых
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	c.JitterFactor = min(max(c.JitterFactor, 0), 1)
	if c.RetryIf == nil {
		c.RetryIf = IsRetryable
	}
	return c
}

// backoff - задержка после неудачной попытки с номером attempt (с 0)
func (c Config) backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < attempt && delay < float64(c.MaxDelay); i++ {
		delay *= c.Multiplier
	}
	delay = min(delay, float64(c.MaxDelay))

	if c.JitterFactor > 0 {
		delay *= 1 + c.JitterFactor*(2*rand.Float64()-1)
	}
	return time.Duration(max(delay, 0))
}

// Do вызывает op, пока она не выполнится, не кончатся попытки,
// не вернется неповторяемая ошибка или не отменится ctx.
// Возвращает последнюю ошибку op; ctx.Err() только если op ни разу не вызывалась.
//
//	err := retry.Do(ctx, func() error {
//	    return store.Upsert(ctx, key, value, now)
//	}, retry.StoreConfig(3))
func Do(ctx context.Context, op func() error, cfg Config) error {
	cfg = cfg.withDefaults()

	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt+1 >= cfg.MaxAttempts || !cfg.RetryIf(err) {
			return err
		}

		delay := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}
		if !sleep(ctx, delay) {
			return err
		}
	}
}

// sleep ждет d; false если ctx отменен раньше
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// permanentError - ошибка, которую повторять бессмысленно
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую. errors.Is по исходной ошибке работает.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable - false для Permanent и ошибок контекста
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
