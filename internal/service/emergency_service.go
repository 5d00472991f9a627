package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kimpdash/internal/metrics"
	"kimpdash/internal/models"
	"kimpdash/internal/repository"
	"kimpdash/pkg/retry"
	"kimpdash/pkg/utils"
)

// Значения по умолчанию для EmergencyOptions
const (
	DefaultStoreTimeout  = 3 * time.Second
	DefaultNotifyTimeout = 10 * time.Second
	DefaultWriteAttempts = 3
)

// EmergencyOptions - таймауты и повторы контроллера
type EmergencyOptions struct {
	StoreTimeout  time.Duration // на один Get или на всю запись с повторами
	NotifyTimeout time.Duration // на одно уведомление в фоне
	WriteAttempts int
}

func (o *EmergencyOptions) setDefaults() {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = DefaultNotifyTimeout
	}
	if o.WriteAttempts <= 0 {
		o.WriteAttempts = DefaultWriteAttempts
	}
}

// readOutcome - результат чтения записи из хранилища
type readOutcome int

const (
	readFound readOutcome = iota
	readMissing
	readFailed
)

// stateRead - размеченный результат чтения: состояние, отсутствие или ошибка
type stateRead struct {
	outcome   readOutcome
	state     *models.EmergencyStopState
	updatedAt time.Time
	err       error
}

// StatusListener получает статус после каждого activate/deactivate
type StatusListener func(status *models.EmergencyStatus)

// EmergencyService - контроллер аварийной остановки.
//
// Единственный, кто пишет запись emergency_stop. Создается один раз при старте
// и передается обработчикам.
//
// Правила:
//   - чтение не удалось: торговля запрещена (IsActive = true)
//   - запись не удалась: операция успешна, но с warning
//   - уведомление уходит в фоне и не влияет на результат
type EmergencyService struct {
	store    StateStore
	notifier Notifier
	opts     EmergencyOptions
	now      func() time.Time
	log      *utils.Logger

	// pending - активация, которую не удалось сохранить.
	// Кэш процесса, а не источник правды: после рестарта теряется.
	// Сбрасывается успешной активацией или любой деактивацией.
	mu        sync.RWMutex
	pending   *models.EmergencyStopState
	listeners []StatusListener

	notifyMu sync.Mutex
	notifyWG sync.WaitGroup
	closed   bool
}

// NewEmergencyService создает контроллер.
// notifier может быть nil - тогда уведомления не отправляются.
func NewEmergencyService(store StateStore, notifier Notifier, opts EmergencyOptions) *EmergencyService {
	opts.setDefaults()
	return &EmergencyService{
		store:    store,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		log:      utils.L().WithComponent("emergency").WithStoreKey(models.EmergencyStopKey),
	}
}

// OnChange регистрирует получателя статуса (например, websocket hub).
// Вызывается синхронно, получатель не должен блокировать.
func (s *EmergencyService) OnChange(fn StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ============================================================
// Чтение
// ============================================================

// IsActive - проверка для гейта входа в позицию.
// Если состояние определить нельзя, возвращает true.
func (s *EmergencyService) IsActive(ctx context.Context) bool {
	r := s.read(ctx)

	var active bool
	switch r.outcome {
	case readFailed:
		s.log.Warn("emergency state unreadable, blocking entries", utils.Err(r.err))
		active = true
	case readMissing:
		active = s.pendingState() != nil
	case readFound:
		active = r.state.Active || s.pendingState() != nil
	}

	metrics.SetEmergencyActive(active)
	return active
}

// GetStatus возвращает текущую запись.
//
//   - записи нет: {active: false, reason: "no_record"}
//   - ошибка чтения: {active: true, reason: "error: ..."}
func (s *EmergencyService) GetStatus(ctx context.Context) *models.EmergencyStatus {
	r := s.read(ctx)

	var status *models.EmergencyStatus
	switch r.outcome {
	case readFailed:
		s.log.Warn("emergency state unreadable, reporting active", utils.Err(r.err))
		status = &models.EmergencyStatus{
			Active: true,
			Reason: models.ReasonErrorPrefix + r.err.Error(),
		}
	case readMissing:
		if p := s.pendingState(); p != nil {
			status = pendingStatus(p)
		} else {
			status = &models.EmergencyStatus{Active: false, Reason: models.ReasonNoRecord}
		}
	case readFound:
		if p := s.pendingState(); p != nil && !r.state.Active {
			status = pendingStatus(p)
		} else {
			status = models.StatusFromState(r.state, r.updatedAt)
		}
	}

	metrics.SetEmergencyActive(status.Active)
	return status
}

// read читает запись и раскладывает результат по исходам.
// Пустая запись считается отсутствующей, нераспознанная - ошибкой.
// Не меняет состояние контроллера: локальный кэш сбрасывают только Activate и Deactivate.
func (s *EmergencyService) read(ctx context.Context) stateRead {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	rec, err := s.store.Get(ctx, models.EmergencyStopKey)
	if errors.Is(err, repository.ErrStateNotFound) {
		return stateRead{outcome: readMissing}
	}
	if err != nil {
		metrics.RecordStoreError("read")
		return stateRead{outcome: readFailed, err: err}
	}

	state, err := models.DecodeEmergencyStopState(rec.Value)
	if errors.Is(err, models.ErrEmptyState) {
		s.log.Warn("emergency record has no active flag, treating as missing")
		return stateRead{outcome: readMissing}
	}
	if err != nil {
		metrics.RecordStoreError("decode")
		return stateRead{outcome: readFailed, err: fmt.Errorf("malformed record: %w", err)}
	}

	return stateRead{outcome: readFound, state: state, updatedAt: rec.UpdatedAt}
}

// ============================================================
// Переключение
// ============================================================

// Activate включает аварийную остановку. Пустая причина заменяется на "manual".
//
// Всегда возвращает Success=true. Если запись не сохранилась, активация
// остается в локальном кэше и в ответе есть warning.
func (s *EmergencyService) Activate(ctx context.Context, reason string) *models.EmergencyResult {
	at := s.now().UTC()
	state := models.NewActivatedState(at, reason)

	result := &models.EmergencyResult{
		Success:     true,
		Active:      true,
		ActivatedAt: state.ActivatedAt,
		Reason:      state.Reason,
	}

	err := s.write(ctx, state, at)
	if err != nil {
		s.log.Error("emergency activation not persisted", utils.Reason(state.Reason), utils.Err(err))
		result.Warning = models.WarningNotPersisted
		s.setPending(&state)
	} else {
		s.clearPending()
		s.log.Warn("emergency stop activated", utils.Reason(state.Reason))
	}

	metrics.RecordTransition("activate", err == nil)
	metrics.SetEmergencyActive(true)

	status := models.StatusFromState(&state, at)
	status.Pending = err != nil
	s.publish(status)

	s.notifyAsync("activate", func(ctx context.Context) error {
		return s.notifier.NotifyActivated(ctx, state.Reason, at)
	})

	return result
}

// Deactivate снимает аварийную остановку.
//
// Локальная неподтвержденная активация сбрасывается в любом случае.
// Если запись не сохранилась, хранилище продолжает отдавать прежнее
// состояние, и гейт не ослабляется.
func (s *EmergencyService) Deactivate(ctx context.Context) *models.EmergencyResult {
	at := s.now().UTC()
	state := models.NewDeactivatedState(at)

	result := &models.EmergencyResult{
		Success:       true,
		Active:        false,
		DeactivatedAt: state.DeactivatedAt,
	}

	s.clearPending()

	err := s.write(ctx, state, at)
	if err != nil {
		s.log.Error("emergency deactivation not persisted", utils.Err(err))
		result.Warning = models.WarningNotPersisted
	} else {
		s.log.Info("emergency stop deactivated")
		metrics.SetEmergencyActive(false)
	}

	metrics.RecordTransition("deactivate", err == nil)

	status := models.StatusFromState(&state, at)
	s.publish(status)

	s.notifyAsync("deactivate", func(ctx context.Context) error {
		return s.notifier.NotifyDeactivated(ctx, at)
	})

	return result
}

// write сохраняет состояние с повторами.
// Отмена запроса клиентом не прерывает запись: ограничивает только StoreTimeout.
func (s *EmergencyService) write(ctx context.Context, state models.EmergencyStopState, at time.Time) error {
	value, err := state.Encode()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
	defer cancel()

	cfg := retry.StoreConfig(s.opts.WriteAttempts)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.log.Warn("emergency state write failed, retrying",
			utils.Int("attempt", attempt),
			utils.Dur("delay", delay),
			utils.Err(err))
	}

	err = retry.Do(ctx, func() error {
		return s.store.Upsert(ctx, models.EmergencyStopKey, value, at)
	}, cfg)
	if err != nil {
		metrics.RecordStoreError("write")
	}
	return err
}

// ============================================================
// Локальный кэш
// ============================================================

func (s *EmergencyService) pendingState() *models.EmergencyStopState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

func (s *EmergencyService) setPending(state *models.EmergencyStopState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = state
}

func (s *EmergencyService) clearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

func pendingStatus(p *models.EmergencyStopState) *models.EmergencyStatus {
	status := models.StatusFromState(p, time.Time{})
	status.Pending = true
	return status
}

func (s *EmergencyService) publish(status *models.EmergencyStatus) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// ============================================================
// Уведомления
// ============================================================

// notifyAsync отправляет уведомление в отдельной горутине и не ждет ее.
// Ошибки и паники только логируются.
func (s *EmergencyService) notifyAsync(action string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}

	s.notifyMu.Lock()
	if s.closed {
		s.notifyMu.Unlock()
		s.log.Warn("notification skipped, controller closed", utils.Action(action))
		return
	}
	s.notifyWG.Add(1)
	s.notifyMu.Unlock()

	go func() {
		defer s.notifyWG.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.RecordNotifyFailure("panic")
				s.log.Error("emergency notification panicked",
					utils.Action(action),
					utils.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			kind := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				kind = "timeout"
			}
			metrics.RecordNotifyFailure(kind)
			s.log.Warn("emergency notification failed", utils.Action(action), utils.Err(err))
		}
	}()
}

// Wait ждет завершения отправляемых уведомлений
func (s *EmergencyService) Wait() {
	s.notifyWG.Wait()
}

// Close запрещает новые уведомления и ждет текущие до отмены ctx.
// Хранилище не закрывает: им владеет вызывающий.
func (s *EmergencyService) Close(ctx context.Context) error {
	s.notifyMu.Lock()
	s.closed = true
	s.notifyMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.notifyWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for notifications: %w", ctx.Err())
	}
}
