package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimpdash/internal/models"
)

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

func newExchangeServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthService_CheckAll(t *testing.T) {
	ok := newExchangeServer(t, http.StatusOK)
	broken := newExchangeServer(t, http.StatusServiceUnavailable)

	tests := []struct {
		name        string
		db          Pinger
		upbitURL    string
		binanceURL  string
		wantStatus  string
		wantHealthy map[string]bool
	}{
		{
			name: "all healthy", db: mockPinger{},
			upbitURL: ok.URL, binanceURL: ok.URL,
			wantStatus:  models.HealthHealthy,
			wantHealthy: map[string]bool{ServiceDatabase: true, ServiceUpbit: true, ServiceBinance: true},
		},
		{
			name: "binance down", db: mockPinger{},
			upbitURL: ok.URL, binanceURL: broken.URL,
			wantStatus:  models.HealthDegraded,
			wantHealthy: map[string]bool{ServiceDatabase: true, ServiceUpbit: true, ServiceBinance: false},
		},
		{
			name: "everything down", db: mockPinger{err: errors.New("refused")},
			upbitURL: broken.URL, binanceURL: "http://127.0.0.1:1/unreachable",
			wantStatus:  models.HealthUnhealthy,
			wantHealthy: map[string]bool{ServiceDatabase: false, ServiceUpbit: false, ServiceBinance: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewHealthService(tt.db, nil, HealthConfig{
				UpbitURL:   tt.upbitURL,
				BinanceURL: tt.binanceURL,
				Timeout:    2 * time.Second,
			})

			health := svc.CheckAll(context.Background())
			assert.Equal(t, tt.wantStatus, health.Status)
			require.Len(t, health.Services, len(tt.wantHealthy))

			for name, want := range tt.wantHealthy {
				s := health.Services[name]
				require.NotNil(t, s, name)
				assert.Equal(t, name, s.Name)
				assert.Equal(t, want, s.Healthy, name)
				if want {
					assert.NotNil(t, s.LatencyMs, name)
					assert.Nil(t, s.Error, name)
				} else {
					require.NotNil(t, s.Error, name)
					assert.Nil(t, s.LatencyMs, name)
				}
			}
		})
	}
}

func TestHealthService_ErrorMessages(t *testing.T) {
	broken := newExchangeServer(t, http.StatusInternalServerError)
	svc := NewHealthService(mockPinger{err: errors.New("refused")}, mockPinger{err: errors.New("closed")}, HealthConfig{
		UpbitURL:   broken.URL,
		BinanceURL: broken.URL,
		Timeout:    time.Second,
	})

	health := svc.CheckAll(context.Background())
	assert.Equal(t, "Connection failed", *health.Services[ServiceDatabase].Error)
	assert.Equal(t, "Connection failed", *health.Services[ServiceStateStore].Error)
	assert.Equal(t, "API unreachable", *health.Services[ServiceUpbit].Error)
	assert.Equal(t, "API unreachable", *health.Services[ServiceBinance].Error)
}

func TestHealthService_TimeoutBounded(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	svc := NewHealthService(mockPinger{}, nil, HealthConfig{
		UpbitURL:   slow.URL,
		BinanceURL: slow.URL,
		Timeout:    100 * time.Millisecond,
	})

	start := time.Now()
	health := svc.CheckAll(context.Background())
	assert.Less(t, time.Since(start), time.Second, "checks must run in parallel and respect timeout")
	assert.Equal(t, models.HealthDegraded, health.Status)
}
