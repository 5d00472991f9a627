package service

import (
	"context"
	"sync"
	"time"

	"kimpdash/internal/models"
	"kimpdash/internal/repository"
)

// ============ Mock StateStore ============

// MockStateStore - хранилище в памяти с управляемыми ошибками
type MockStateStore struct {
	*repository.MemoryStateStore

	mu          sync.Mutex
	getErr      error
	upsertErr   error
	failUpserts int // сколько ближайших Upsert вернут upsertErr
	upserts     int
	upsertDelay time.Duration
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{MemoryStateStore: repository.NewMemoryStateStore()}
}

func (m *MockStateStore) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// SetUpsertError - все записи падают с err (nil снимает ошибку)
func (m *MockStateStore) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
	m.failUpserts = -1
}

// FailNextUpserts - ближайшие n записей падают с err
func (m *MockStateStore) FailNextUpserts(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
	m.failUpserts = n
}

func (m *MockStateStore) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// PutRaw кладет произвольное value в обход контроллера
func (m *MockStateStore) PutRaw(value string) {
	_ = m.MemoryStateStore.Upsert(context.Background(), models.EmergencyStopKey, []byte(value), time.Now())
}

func (m *MockStateStore) Get(ctx context.Context, key string) (*models.SystemStatusRecord, error) {
	m.mu.Lock()
	err := m.getErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.MemoryStateStore.Get(ctx, key)
}

func (m *MockStateStore) Upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error {
	m.mu.Lock()
	m.upserts++
	delay := m.upsertDelay
	var err error
	if m.upsertErr != nil && m.failUpserts != 0 {
		err = m.upsertErr
		if m.failUpserts > 0 {
			m.failUpserts--
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return m.MemoryStateStore.Upsert(ctx, key, value, updatedAt)
}

// ============ Mock Notifier ============

type notifyCall struct {
	action string
	reason string
	at     time.Time
}

// MockNotifier записывает вызовы и сигналит в calls
type MockNotifier struct {
	mu      sync.Mutex
	records []notifyCall
	err     error
	panics  bool
	block   chan struct{} // если не nil, отправка ждет закрытия или ctx
	calls   chan notifyCall
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{calls: make(chan notifyCall, 16)}
}

func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockNotifier) record(ctx context.Context, call notifyCall) error {
	m.mu.Lock()
	err, panics, block := m.err, m.panics, m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if panics {
		panic("notifier exploded")
	}

	m.mu.Lock()
	m.records = append(m.records, call)
	m.mu.Unlock()

	select {
	case m.calls <- call:
	default:
	}
	return err
}

func (m *MockNotifier) NotifyActivated(ctx context.Context, reason string, at time.Time) error {
	return m.record(ctx, notifyCall{action: "activate", reason: reason, at: at})
}

func (m *MockNotifier) NotifyDeactivated(ctx context.Context, at time.Time) error {
	return m.record(ctx, notifyCall{action: "deactivate", at: at})
}

func (m *MockNotifier) Records() []notifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifyCall(nil), m.records...)
}

// ============ Mock KimpRepository ============

type MockKimpRepository struct {
	latest   *models.KimpData
	history  []*models.KimpData
	err      error
	rangeErr error
	pingErr  error

	lastFrom, lastTo time.Time
}

func (m *MockKimpRepository) GetLatest(ctx context.Context) (*models.KimpData, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.latest == nil {
		return nil, repository.ErrKimpNotFound
	}
	return m.latest, nil
}

func (m *MockKimpRepository) GetRange(ctx context.Context, from, to time.Time) ([]*models.KimpData, error) {
	m.lastFrom, m.lastTo = from, to
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	return m.history, nil
}

func (m *MockKimpRepository) Ping(ctx context.Context) error {
	return m.pingErr
}

// ============ Mock PositionRepository ============

type MockPositionRepository struct {
	position *models.Position
	err      error
}

func (m *MockPositionRepository) GetOpen(ctx context.Context) (*models.Position, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.position == nil {
		return nil, repository.ErrPositionNotFound
	}
	p := *m.position
	return &p, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades    []*models.Trade
	total     int
	err       error
	countErr  error
	lastLimit int
}

func (m *MockTradeRepository) GetRecent(ctx context.Context, limit int) ([]*models.Trade, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.trades) {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockTradeRepository) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.total, nil
}
