package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lanbeam/relay/internal/router"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size; enough for SDP blobs and manifests.
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware.
		return true
	},
}

// Client wraps one device websocket connection. All writes go through the
// bounded send queue drained by writePump, so Send never blocks the caller.
type Client struct {
	ID   string
	conn *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

// DeviceSocket upgrades the request and starts the connection's pumps. The
// device stays anonymous until its first register message.
func DeviceSocket(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("ws: upgrade failed: %v", err)
			return
		}
		client := &Client{
			ID:   uuid.New().String(),
			conn: conn,
			send: make(chan []byte, sendBuffer),
			done: make(chan struct{}),
		}
		log.Printf("ws: connection %s opened from %s", client.ID, conn.RemoteAddr())

		go client.writePump()
		go client.readPump(rt)
	}
}

// Send queues an envelope for delivery. It reports false when the message
// was dropped because the connection is closing or the queue is full;
// dropped room updates are recoverable since every state change rebroadcasts
// a full snapshot.
func (c *Client) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: marshal outbound message: %v", err)
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- data:
		return true
	default:
		log.Printf("ws: connection %s send buffer full, dropping message", c.ID)
		return false
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump delivers inbound messages to the router in arrival order and
// drives the disconnect cascade when the connection ends.
func (c *Client) readPump(rt *router.Router) {
	defer func() {
		rt.HandleDisconnect(c)
		c.shutdown()
		log.Printf("ws: connection %s closed", c.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: connection %s read error: %v", c.ID, err)
			}
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		rt.HandleMessage(c, payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
