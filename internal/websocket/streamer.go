package websocket

import (
	"context"
	"time"

	"kimpdash/internal/models"
	"kimpdash/pkg/utils"
)

// DefaultStreamInterval - период опроса kimp_1m (записи появляются раз в минуту)
const DefaultStreamInterval = 10 * time.Second

// MarketSource - источник данных премии для стримера
type MarketSource interface {
	GetCurrent(ctx context.Context) (*models.KimpData, error)
	GetTicker(ctx context.Context) *models.Ticker
}

// Streamer периодически читает последнюю запись премии и рассылает ее клиентам.
// Рассылка идет только при появлении новой записи.
type Streamer struct {
	hub      *Hub
	source   MarketSource
	interval time.Duration
	log      *utils.Logger

	lastTimestamp time.Time
}

// NewStreamer создает стример. interval <= 0 заменяется на DefaultStreamInterval.
func NewStreamer(hub *Hub, source MarketSource, interval time.Duration) *Streamer {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &Streamer{
		hub:      hub,
		source:   source,
		interval: interval,
		log:      utils.L().WithComponent("ws_streamer"),
	}
}

// Run опрашивает источник до отмены ctx
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll отправляет kimpUpdate и tickerUpdate, если запись обновилась
func (s *Streamer) poll(ctx context.Context) {
	if s.hub.ClientCount() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	data, err := s.source.GetCurrent(ctx)
	if err != nil {
		s.log.Debug("no kimp data to stream", utils.Err(err))
		return
	}
	if !data.Timestamp.After(s.lastTimestamp) {
		return
	}
	s.lastTimestamp = data.Timestamp
	s.log.Debug("streaming kimp update", utils.Premium(data.Kimp), utils.Int("clients", s.hub.ClientCount()))

	s.hub.BroadcastKimpUpdate(data)
	s.hub.BroadcastTickerUpdate(s.source.GetTicker(ctx))
}
