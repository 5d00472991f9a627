package websocket

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"kimpdash/internal/metrics"
	"kimpdash/internal/models"
	"kimpdash/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBufferPool убирает аллокации буфера при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Размер очереди broadcast
const broadcastBufferSize = 256

// WelcomeFunc возвращает сообщение, которое новый клиент получает сразу после подключения
type WelcomeFunc func(ctx context.Context) interface{}

// directMessage - сообщение одному клиенту через главный цикл
type directMessage struct {
	client *Client
	data   []byte
}

// Hub управляет всеми активными WebSocket соединениями
//
// Рассылает клиентам дашборда обновления аварийной остановки и премии,
// чтобы все открытые вкладки видели переключение без polling.
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.Broadcast(message)
// 4. При завершении: hub.Stop()
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	direct     chan directMessage

	stop     chan struct{}
	stopOnce sync.Once

	// Сообщения, не поставленные в очередь или не доставленные медленным клиентам
	dropped atomic.Uint64

	// Растет с каждым BroadcastEmergencyUpdate
	emergencySeq atomic.Uint64

	origins *OriginPolicy
	welcome WelcomeFunc
	log     *utils.Logger

	mu sync.RWMutex
}

// NewHub создает новый Hub. По умолчанию разрешены все Origin.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMessage),
		stop:       make(chan struct{}),
		origins:    NewOriginPolicy(nil),
		log:        utils.L().WithComponent("ws_hub"),
	}
}

// SetAllowedOrigins ограничивает Origin для подключений. Вызывать до запуска сервера.
func (h *Hub) SetAllowedOrigins(origins []string) {
	h.origins = NewOriginPolicy(origins)
}

// SetWelcome задает сообщение для новых клиентов. Вызывать до запуска сервера.
func (h *Hub) SetWelcome(fn WelcomeFunc) {
	h.welcome = fn
}

// Run запускает главный цикл Hub до вызова Stop
//
// Список клиентов копируется под RLock, отправка идет без блокировки,
// медленные клиенты удаляются под Write Lock.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			metrics.WSClients.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			h.log.Debug("client connected", utils.Int("clients", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			h.log.Debug("client disconnected", utils.Int("clients", n))

		case m := <-h.direct:
			// send закрывает только этот цикл, поэтому проверка и отправка не гоняются
			h.mu.RLock()
			_, ok := h.clients[m.client]
			h.mu.RUnlock()
			if !ok {
				continue
			}
			select {
			case m.client.send <- m.data:
			default:
				h.addDropped(1)
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				n := len(h.clients)
				h.mu.Unlock()
				h.addDropped(uint64(len(toRemove)))
				metrics.WSClients.Set(float64(n))
				h.log.Warn("removed slow clients", utils.Int("removed", len(toRemove)), utils.Int("clients", n))
			}
		}
	}
}

// Stop останавливает Run и закрывает каналы клиентов. Повторный вызов безопасен.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Broadcast сериализует сообщение и ставит в очередь без блокировки.
// Если очередь полна, сообщение отбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	data, err := encodeMessage(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", utils.Err(err))
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.stop:
	default:
		h.addDropped(1)
	}
}

// BroadcastEmergencyUpdate рассылает статус аварийной остановки.
// Подходит как StatusListener контроллера.
func (h *Hub) BroadcastEmergencyUpdate(status *models.EmergencyStatus) {
	h.emergencySeq.Add(1)
	h.Broadcast(NewEmergencyUpdateMessage(status))
}

// sendTo отправляет сообщение одному зарегистрированному клиенту
func (h *Hub) sendTo(client *Client, data []byte) {
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.stop:
	}
}

// Сколько раз перечитывать приветствие, если во время чтения пришло переключение
const welcomeAttempts = 3

// sendWelcome отправляет клиенту текущий статус. Клиент уже зарегистрирован,
// поэтому переключение во время чтения придет ему broadcast-ом. Если такое
// переключение было, статус перечитывается: последним клиент видит свежий.
func (h *Hub) sendWelcome(ctx context.Context, client *Client) {
	if h.welcome == nil {
		return
	}

	for attempt := 0; attempt < welcomeAttempts; attempt++ {
		seq := h.emergencySeq.Load()

		data, err := encodeMessage(h.welcome(ctx))
		if err != nil {
			client.logger().Error("failed to encode welcome message", utils.Err(err))
			return
		}
		h.sendTo(client, data)

		if h.emergencySeq.Load() == seq {
			return
		}
	}
}

// BroadcastKimpUpdate рассылает последнюю запись премии
func (h *Hub) BroadcastKimpUpdate(data *models.KimpData) {
	h.Broadcast(NewKimpUpdateMessage(data))
}

// BroadcastTickerUpdate рассылает данные бегущей строки
func (h *Hub) BroadcastTickerUpdate(ticker *models.Ticker) {
	h.Broadcast(NewTickerUpdateMessage(ticker))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает количество отброшенных сообщений
func (h *Hub) DroppedMessages() uint64 {
	return h.dropped.Load()
}

func (h *Hub) addDropped(n uint64) {
	h.dropped.Add(n)
	metrics.WSDroppedMessages.Add(float64(n))
}

// encodeMessage сериализует сообщение через пул буферов
func encodeMessage(message interface{}) ([]byte, error) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		return nil, err
	}

	// Убираем trailing newline от Encode
	data := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})

	// Буфер вернется в пул, отдаем копию
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
