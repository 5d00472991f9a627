package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kimpdash/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Дашборд не шлет данных, только control frames
	maxMessageSize = 4096

	clientSendBufferSize = 64
)

// Client - одна вкладка дашборда, подписанная на обновления.
//
// Поток односторонний: writePump отдает сообщения из send,
// readPump нужен только для pong и обнаружения разрыва.
type Client struct {
	id     string
	remote string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, remote string) *Client {
	return &Client{
		id:     uuid.NewString(),
		remote: remote,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, clientSendBufferSize),
	}
}

func (c *Client) logger() *utils.Logger {
	return c.hub.log.With(utils.String("client_id", c.id), utils.ClientIP(c.remote))
}

// readPump держит read deadline по pong и выходит при разрыве
func (c *Client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger().Debug("websocket closed unexpectedly", utils.Err(err))
			}
			return
		}
	}
}

// leave снимает клиента с hub; после Stop hub уже закрыл send сам
func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.stop:
	}
	_ = c.conn.Close()
}

// writePump пишет каждое сообщение отдельным text frame и шлет ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger().Debug("websocket write failed", utils.Err(err))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (h *Hub) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return h.origins.Allows(r.Header.Get("Origin"))
		},
		EnableCompression: true,
	}
}

// ServeWS - обработчик GET /ws/stream.
//
// Клиент регистрируется до чтения статуса аварийной остановки, затем получает
// текущий статус и дальше все переключения и обновления премии.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту (403 для чужого Origin)
		h.log.Warn("websocket upgrade failed", utils.ClientIP(r.RemoteAddr), utils.Err(err))
		return
	}

	client := newClient(h, conn, r.RemoteAddr)

	select {
	case h.register <- client:
	case <-h.stop:
		_ = conn.Close()
		return
	}

	client.logger().Debug("websocket client connected")

	go client.writePump()
	go client.readPump()

	h.sendWelcome(r.Context(), client)
}
