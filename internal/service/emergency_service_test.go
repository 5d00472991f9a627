package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimpdash/internal/models"
)

var errStoreDown = errors.New("connection refused")

// fixedClock возвращает заданные моменты по очереди, последний повторяется
type fixedClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

func newTestEmergencyService(t *testing.T, store StateStore, notifier Notifier) *EmergencyService {
	t.Helper()
	svc := NewEmergencyService(store, notifier, EmergencyOptions{
		StoreTimeout:  200 * time.Millisecond,
		NotifyTimeout: 200 * time.Millisecond,
		WriteAttempts: 2,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc
}

func waitNotify(t *testing.T, n *MockNotifier) notifyCall {
	t.Helper()
	select {
	case call := <-n.calls:
		return call
	case <-time.After(time.Second):
		t.Fatal("notification was not sent")
		return notifyCall{}
	}
}

// ============================================================
// Чтение
// ============================================================

func TestEmergencyService_NoRecord(t *testing.T) {
	svc := newTestEmergencyService(t, NewMockStateStore(), nil)
	ctx := context.Background()

	status := svc.GetStatus(ctx)
	assert.False(t, status.Active)
	assert.Equal(t, models.ReasonNoRecord, status.Reason)
	assert.Nil(t, status.ActivatedAt)
	assert.Nil(t, status.UpdatedAt)

	assert.False(t, svc.IsActive(ctx))
}

func TestEmergencyService_FailSafeOnReadError(t *testing.T) {
	store := NewMockStateStore()
	store.SetGetError(errStoreDown)
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	assert.True(t, svc.IsActive(ctx), "unreadable state must block entries")

	status := svc.GetStatus(ctx)
	assert.True(t, status.Active)
	assert.Equal(t, "error: connection refused", status.Reason)
}

func TestEmergencyService_FailSafeAfterDeactivation(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	svc.Deactivate(ctx)
	require.False(t, svc.IsActive(ctx))

	store.SetGetError(errStoreDown)
	assert.True(t, svc.IsActive(ctx))
}

func TestEmergencyService_FailSafeOnTimeout(t *testing.T) {
	store := NewMockStateStore()
	store.SetGetError(context.DeadlineExceeded)
	svc := newTestEmergencyService(t, store, nil)

	status := svc.GetStatus(context.Background())
	assert.True(t, status.Active)
	assert.True(t, strings.HasPrefix(status.Reason, models.ReasonErrorPrefix))
}

func TestEmergencyService_RecordShapes(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantActive bool
		wantReason string
	}{
		{"empty object", `{}`, false, models.ReasonNoRecord},
		{"null", `null`, false, models.ReasonNoRecord},
		{"empty value", ``, false, models.ReasonNoRecord},
		{"reason without flag", `{"reason":"x"}`, false, models.ReasonNoRecord},
		{"active record", `{"active":true,"reason":"api_error"}`, true, "api_error"},
		{"inactive record", `{"active":false}`, false, ""},
		{"garbage", `{not json`, true, ""},
		{"wrong type", `{"active":"yes"}`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMockStateStore()
			store.PutRaw(tt.raw)
			svc := newTestEmergencyService(t, store, nil)
			ctx := context.Background()

			status := svc.GetStatus(ctx)
			assert.Equal(t, tt.wantActive, status.Active)
			assert.Equal(t, tt.wantActive, svc.IsActive(ctx))

			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, status.Reason)
			}
			if tt.wantActive && tt.wantReason == "" {
				assert.True(t, strings.HasPrefix(status.Reason, models.ReasonErrorPrefix),
					"undecodable record must report an error reason, got %q", status.Reason)
			}
		})
	}
}

// ============================================================
// Переключение
// ============================================================

func TestEmergencyService_ActivateDefaultReason(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	t1 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	svc.now = (&fixedClock{times: []time.Time{t1}}).Now

	result := svc.Activate(ctx, "")
	assert.True(t, result.Success)
	assert.True(t, result.Active)
	assert.Equal(t, models.ReasonManual, result.Reason)
	require.NotNil(t, result.ActivatedAt)
	assert.True(t, result.ActivatedAt.Equal(t1))
	assert.Empty(t, result.Warning)

	status := svc.GetStatus(ctx)
	assert.True(t, status.Active)
	assert.Equal(t, models.ReasonManual, status.Reason)
	require.NotNil(t, status.ActivatedAt)
	assert.True(t, status.ActivatedAt.Equal(t1))
	assert.Nil(t, status.DeactivatedAt)
	require.NotNil(t, status.UpdatedAt)
	assert.True(t, status.UpdatedAt.Equal(t1))
	assert.False(t, status.Pending)
}

func TestEmergencyService_ActivateThenDeactivate(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	t1 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	svc.now = (&fixedClock{times: []time.Time{t1, t2}}).Now

	svc.Activate(ctx, "api_error")
	result := svc.Deactivate(ctx)

	assert.True(t, result.Success)
	assert.False(t, result.Active)
	require.NotNil(t, result.DeactivatedAt)
	assert.True(t, result.DeactivatedAt.Equal(t2))
	assert.Empty(t, result.Reason)

	status := svc.GetStatus(ctx)
	assert.False(t, status.Active)
	require.NotNil(t, status.DeactivatedAt)
	assert.True(t, status.DeactivatedAt.Equal(t2))
	assert.Nil(t, status.ActivatedAt)
	assert.Empty(t, status.Reason)
	assert.False(t, svc.IsActive(ctx))
}

func TestEmergencyService_ActivateIdempotent(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}
	svc.now = (&fixedClock{times: times}).Now

	for i, reason := range []string{"first", "second", "third"} {
		result := svc.Activate(ctx, reason)
		assert.True(t, result.Success, "call %d", i)
		assert.Empty(t, result.Warning, "call %d", i)
	}

	status := svc.GetStatus(ctx)
	assert.True(t, status.Active)
	assert.Equal(t, "third", status.Reason)
	require.NotNil(t, status.ActivatedAt)
	assert.True(t, status.ActivatedAt.Equal(times[2]), "activated_at must be the latest call time")
	assert.Equal(t, 3, store.Upserts())
}

func TestEmergencyService_DeactivateIdempotent(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	svc.now = (&fixedClock{times: []time.Time{base, base.Add(time.Minute)}}).Now

	first := svc.Deactivate(ctx)
	second := svc.Deactivate(ctx)
	assert.True(t, first.Success)
	assert.True(t, second.Success)

	status := svc.GetStatus(ctx)
	assert.False(t, status.Active)
	require.NotNil(t, status.DeactivatedAt)
	assert.True(t, status.DeactivatedAt.Equal(base.Add(time.Minute)))
}

func TestEmergencyService_TimestampUTC(t *testing.T) {
	svc := newTestEmergencyService(t, NewMockStateStore(), nil)
	seoul := time.FixedZone("KST", 9*3600)
	svc.now = func() time.Time { return time.Date(2024, 1, 15, 21, 0, 0, 0, seoul) }

	result := svc.Activate(context.Background(), "manual")
	require.NotNil(t, result.ActivatedAt)
	assert.Equal(t, time.UTC, result.ActivatedAt.Location())
	assert.Equal(t, 12, result.ActivatedAt.Hour())
}

// ============================================================
// Ошибки записи
// ============================================================

func TestEmergencyService_ActivateWriteFailure(t *testing.T) {
	store := NewMockStateStore()
	store.SetUpsertError(errStoreDown)
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	result := svc.Activate(ctx, "exchange_outage")
	assert.True(t, result.Success)
	assert.True(t, result.Active)
	assert.Equal(t, models.WarningNotPersisted, result.Warning)
	assert.Equal(t, 2, store.Upserts(), "write should be retried")

	// локальная активация блокирует вход, даже если в хранилище записи нет
	assert.True(t, svc.IsActive(ctx))

	status := svc.GetStatus(ctx)
	assert.True(t, status.Active)
	assert.True(t, status.Pending)
	assert.Equal(t, "exchange_outage", status.Reason)
}

func TestEmergencyService_PendingOverridesInactiveStore(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	svc.Deactivate(ctx)
	store.SetUpsertError(errStoreDown)
	svc.Activate(ctx, "volatility")

	assert.True(t, svc.IsActive(ctx))
	status := svc.GetStatus(ctx)
	assert.True(t, status.Active)
	assert.True(t, status.Pending)

	// хранилище восстановилось, следующая активация сохраняется и сбрасывает кэш
	store.SetUpsertError(nil)
	result := svc.Activate(ctx, "volatility")
	assert.Empty(t, result.Warning)

	status = svc.GetStatus(ctx)
	assert.True(t, status.Active)
	assert.False(t, status.Pending)
}

// Чтение не сбрасывает неподтвержденную активацию, даже если хранилище
// временно показывает active: его может снять другой процесс.
func TestEmergencyService_ReadsDoNotClearPending(t *testing.T) {
	store := NewMockStateStore()
	store.SetUpsertError(errStoreDown)
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	svc.Activate(ctx, "volatility")
	require.NotNil(t, svc.pendingState())

	store.PutRaw(`{"active":true,"activated_at":"2025-12-17T12:00:00Z","reason":"cli"}`)
	assert.True(t, svc.IsActive(ctx))
	assert.Equal(t, "cli", svc.GetStatus(ctx).Reason)
	assert.NotNil(t, svc.pendingState(), "reads must not touch the local cache")

	// другой процесс снял остановку в хранилище, локальная активация все еще действует
	store.PutRaw(`{"active":false,"deactivated_at":"2025-12-17T12:05:00Z"}`)
	assert.True(t, svc.IsActive(ctx))
	assert.True(t, svc.GetStatus(ctx).Pending)

	// только Deactivate сбрасывает кэш
	store.SetUpsertError(nil)
	svc.Deactivate(ctx)
	assert.Nil(t, svc.pendingState())
	assert.False(t, svc.IsActive(ctx))
}

func TestEmergencyService_DeactivateWriteFailureKeepsStoredStop(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)
	ctx := context.Background()

	svc.Activate(ctx, "manual")
	store.SetUpsertError(errStoreDown)

	result := svc.Deactivate(ctx)
	assert.True(t, result.Success)
	assert.False(t, result.Active)
	assert.Equal(t, models.WarningNotPersisted, result.Warning)

	// хранилище по-прежнему запрещает торговлю
	assert.True(t, svc.IsActive(ctx))
}

func TestEmergencyService_WriteRetrySucceeds(t *testing.T) {
	store := NewMockStateStore()
	store.FailNextUpserts(1, errStoreDown)
	svc := newTestEmergencyService(t, store, nil)

	result := svc.Activate(context.Background(), "manual")
	assert.Empty(t, result.Warning)
	assert.Equal(t, 2, store.Upserts())
	assert.False(t, svc.GetStatus(context.Background()).Pending)
}

func TestEmergencyService_WriteSurvivesCancelledRequest(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Activate(ctx, "manual")
	assert.Empty(t, result.Warning, "client disconnect must not abort the write")
	assert.True(t, svc.IsActive(context.Background()))
}

func TestEmergencyService_WriteTimeout(t *testing.T) {
	store := NewMockStateStore()
	store.upsertDelay = time.Second
	svc := newTestEmergencyService(t, store, nil)

	start := time.Now()
	result := svc.Activate(context.Background(), "manual")
	assert.Less(t, time.Since(start), 800*time.Millisecond)
	assert.Equal(t, models.WarningNotPersisted, result.Warning)
}

// ============================================================
// Уведомления
// ============================================================

func TestEmergencyService_NotifiesOnTransitions(t *testing.T) {
	notifier := NewMockNotifier()
	svc := newTestEmergencyService(t, NewMockStateStore(), notifier)
	ctx := context.Background()

	svc.Activate(ctx, "api_error")
	call := waitNotify(t, notifier)
	assert.Equal(t, "activate", call.action)
	assert.Equal(t, "api_error", call.reason)

	svc.Deactivate(ctx)
	call = waitNotify(t, notifier)
	assert.Equal(t, "deactivate", call.action)
}

func TestEmergencyService_NotifiesEvenWhenNotPersisted(t *testing.T) {
	store := NewMockStateStore()
	store.SetUpsertError(errStoreDown)
	notifier := NewMockNotifier()
	svc := newTestEmergencyService(t, store, notifier)

	svc.Activate(context.Background(), "manual")
	call := waitNotify(t, notifier)
	assert.Equal(t, "activate", call.action)
}

func TestEmergencyService_NotificationIsolation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(n *MockNotifier)
	}{
		{"error", func(n *MockNotifier) { n.SetError(errors.New("telegram down")) }},
		{"panic", func(n *MockNotifier) { n.panics = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewMockNotifier()
			tt.setup(notifier)
			svc := newTestEmergencyService(t, NewMockStateStore(), notifier)
			ctx := context.Background()

			result := svc.Activate(ctx, "manual")
			assert.True(t, result.Success)
			assert.Empty(t, result.Warning)

			result = svc.Deactivate(ctx)
			assert.True(t, result.Success)
			assert.Empty(t, result.Warning)

			svc.Wait()
			assert.False(t, svc.IsActive(ctx))
		})
	}
}

func TestEmergencyService_DoesNotWaitForNotification(t *testing.T) {
	notifier := NewMockNotifier()
	notifier.block = make(chan struct{})
	svc := newTestEmergencyService(t, NewMockStateStore(), notifier)

	done := make(chan *models.EmergencyResult, 1)
	go func() { done <- svc.Activate(context.Background(), "manual") }()

	select {
	case result := <-done:
		assert.True(t, result.Success)
	case <-time.After(time.Second):
		t.Fatal("Activate blocked on notification")
	}

	close(notifier.block)
	waitNotify(t, notifier)
}

func TestEmergencyService_NotificationTimeout(t *testing.T) {
	notifier := NewMockNotifier()
	notifier.block = make(chan struct{}) // никогда не закрывается
	svc := newTestEmergencyService(t, NewMockStateStore(), notifier)

	svc.Activate(context.Background(), "manual")

	waited := make(chan struct{})
	go func() {
		svc.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not bounded by timeout")
	}
	assert.Empty(t, notifier.Records())
}

func TestEmergencyService_CloseSkipsNewNotifications(t *testing.T) {
	notifier := NewMockNotifier()
	svc := newTestEmergencyService(t, NewMockStateStore(), notifier)

	require.NoError(t, svc.Close(context.Background()))

	result := svc.Activate(context.Background(), "manual")
	assert.True(t, result.Success)
	svc.Wait()
	assert.Empty(t, notifier.Records())
}

func TestEmergencyService_CloseRespectsContext(t *testing.T) {
	notifier := NewMockNotifier()
	notifier.block = make(chan struct{})
	svc := NewEmergencyService(NewMockStateStore(), notifier, EmergencyOptions{NotifyTimeout: time.Second})

	svc.Activate(context.Background(), "manual")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, svc.Close(ctx))

	close(notifier.block)
	svc.Wait()
}

// ============================================================
// Подписчики и конкурентность
// ============================================================

func TestEmergencyService_OnChange(t *testing.T) {
	store := NewMockStateStore()
	svc := newTestEmergencyService(t, store, nil)

	var got []*models.EmergencyStatus
	svc.OnChange(func(status *models.EmergencyStatus) { got = append(got, status) })

	svc.Activate(context.Background(), "manual")
	store.SetUpsertError(errStoreDown)
	svc.Activate(context.Background(), "again")
	svc.Deactivate(context.Background())

	require.Len(t, got, 3)
	assert.True(t, got[0].Active)
	assert.False(t, got[0].Pending)
	assert.True(t, got[1].Pending)
	assert.Equal(t, "again", got[1].Reason)
	assert.False(t, got[2].Active)
}

func TestEmergencyService_ConcurrentActivate(t *testing.T) {
	for i := 0; i < 20; i++ {
		store := NewMockStateStore()
		svc := newTestEmergencyService(t, store, nil)
		ctx := context.Background()

		var wg sync.WaitGroup
		for _, reason := range []string{"a", "b"} {
			wg.Add(1)
			go func(r string) {
				defer wg.Done()
				svc.Activate(ctx, r)
			}(reason)
		}
		wg.Wait()

		status := svc.GetStatus(ctx)
		assert.True(t, status.Active)
		assert.Contains(t, []string{"a", "b"}, status.Reason, fmt.Sprintf("iteration %d", i))
	}
}

func TestEmergencyService_ConcurrentMixedCalls(t *testing.T) {
	svc := newTestEmergencyService(t, NewMockStateStore(), NewMockNotifier())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				svc.Activate(ctx, "load")
			case 1:
				svc.Deactivate(ctx)
			case 2:
				svc.IsActive(ctx)
			default:
				svc.GetStatus(ctx)
			}
		}(i)
	}
	wg.Wait()

	status := svc.GetStatus(ctx)
	assert.NotEqual(t, models.ReasonNoRecord, status.Reason)
	assert.False(t, strings.HasPrefix(status.Reason, models.ReasonErrorPrefix))
}
