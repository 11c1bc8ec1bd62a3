// Package realtime рассылает события кредитного портфеля подключенным сотрудникам
// через websocket.
package realtime

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Типы событий
const (
	EventLoanDisbursed     = "loan_disbursed"
	EventLoanStatusChanged = "loan_status_changed"
	EventRepaymentRecorded = "repayment_recorded"
	EventRepaymentReversed = "repayment_reversed"

	// только сотруднику, подавшему заявку
	EventApplicationDecided = "application_decided"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Event сообщение, отправляемое клиенту
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

type envelope struct {
	userID uint // 0: всем подключенным
	event  *Event
}

// Hub хранит подключения сотрудников, сгруппированные по пользователю
type Hub struct {
	upgrader websocket.Upgrader

	connections map[uint]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan envelope
	done       chan struct{}

	mu sync.RWMutex
}

// Connection подключение одного клиента
type Connection struct {
	ws     *websocket.Conn
	userID uint
	send   chan *Event
	hub    *Hub
}

// NewHub создает хаб. allowedOrigin "*" или пустая строка разрешает любой origin.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		connections: make(map[uint]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan envelope, 256),
		done:        make(chan struct{}),
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			var conns []*Connection
			for _, m := range h.connections {
				for c := range m {
					conns = append(conns, c)
				}
			}
			h.mu.RUnlock()

			// Закрываем вне блокировки, насосы сами снимут регистрацию
			for _, c := range conns {
				_ = c.ws.Close()
			}
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.userID] == nil {
				h.connections[conn.userID] = make(map[*Connection]bool)
			}
			h.connections[conn.userID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for userID, conns := range h.connections {
				if msg.userID != 0 && msg.userID != userID {
					continue
				}
				for conn := range conns {
					select {
					case conn.send <- msg.event:
					default:
						// медленный клиент
						h.remove(conn)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove снимает регистрацию. Вызывается под mu.
func (h *Hub) remove(conn *Connection) {
	connections, ok := h.connections[conn.userID]
	if !ok {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.send)
	if len(connections) == 0 {
		delete(h.connections, conn.userID)
	}
}

// Publish отправляет событие всем подключенным сотрудникам
func (h *Hub) Publish(eventType string, data interface{}) {
	h.enqueue(envelope{event: &Event{Type: eventType, Data: data, At: time.Now().UTC()}})
}

// SendToUser отправляет событие подключениям одного сотрудника
func (h *Hub) SendToUser(userID uint, eventType string, data interface{}) {
	if userID == 0 {
		return
	}
	h.enqueue(envelope{userID: userID, event: &Event{Type: eventType, Data: data, At: time.Now().UTC()}})
}

func (h *Hub) enqueue(msg envelope) {
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("Hub broadcast channel is full, dropping %s event", msg.event.Type)
	}
}

// ConnectionCount количество активных подключений
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.connections {
		n += len(conns)
	}
	return n
}

// HandleWebSocket переводит запрос в websocket для пользователя userID
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID uint) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ws:     ws,
		userID: userID,
		send:   make(chan *Event, sendBuffer),
		hub:    h,
	}

	select {
	case h.register <- conn:
	case <-h.done:
		ws.Close()
		return
	}

	go conn.writePump()
	go conn.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Клиенты только слушают, входящие сообщения игнорируются
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(event); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
