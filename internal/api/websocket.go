package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/logging"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"

	// Event kinds published by the handlers
	EventImportLoaded   = "import_loaded"
	EventImportReloaded = "import_reloaded"
	EventImportCreated  = "import_created"
	EventSceneUndo      = "scene_undo"
)

// clientBuffer is how many events a slow client may fall behind before
// events are dropped for it.
const clientBuffer = 64

// WSMessage is the envelope for every message on the event stream
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type wsClient struct {
	send chan WSMessage
}

// EventHub fans progress events out to every connected websocket client
type EventHub struct {
	upgrader websocket.Upgrader
	clients  map[*wsClient]struct{}
	mu       sync.RWMutex
	logger   logrus.FieldLogger
}

// NewEventHub creates a hub. maxMessageKB bounds client buffers; zero uses 64KB.
func NewEventHub(maxMessageKB int, logger logrus.FieldLogger) *EventHub {
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  maxMessageKB * 1024,
			WriteBufferSize: maxMessageKB * 1024,
		},
		clients: make(map[*wsClient]struct{}),
		logger:  logging.WithComponent(logger, "websocket"),
	}
}

// Publish queues an event for every client. Clients whose buffer is full miss it.
func (hub *EventHub) Publish(kind string, payload interface{}) {
	msg := WSMessage{
		Type:      kind,
		Payload:   mustJSON(payload),
		Timestamp: time.Now().UnixMilli(),
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for client := range hub.clients {
		select {
		case client.send <- msg:
		default:
			hub.logger.WithField("type", kind).Debug("client too slow, event dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (hub *EventHub) Clients() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// HandleEvents upgrades the connection and streams events until the client leaves
func (hub *EventHub) HandleEvents(c echo.Context) error {
	ws, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	client := &wsClient{send: make(chan WSMessage, clientBuffer)}
	hub.register(client)
	defer hub.unregister(client)

	hub.logger.Info("client connected")
	client.send <- WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()}

	done := make(chan struct{})
	go hub.writeLoop(ws, client, done)

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.WithError(err).Warn("connection error")
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			hub.enqueue(client, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		default:
			hub.enqueue(client, WSMessage{
				Type:      MsgTypeError,
				Timestamp: time.Now().UnixMilli(),
				Payload: mustJSON(WSErrorResponse{
					Message: "Unknown message type: " + msg.Type,
					Code:    "INVALID_TYPE",
				}),
			})
		}
	}

	close(done)
	hub.logger.Info("client disconnected")
	return nil
}

func (hub *EventHub) writeLoop(ws *websocket.Conn, client *wsClient, done <-chan struct{}) {
	for {
		select {
		case msg := <-client.send:
			if err := ws.WriteJSON(msg); err != nil {
				hub.logger.WithError(err).Warn("failed to send message")
				return
			}
		case <-done:
			return
		}
	}
}

func (hub *EventHub) enqueue(client *wsClient, msg WSMessage) {
	select {
	case client.send <- msg:
	default:
	}
}

func (hub *EventHub) register(client *wsClient) {
	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	hub.mu.Unlock()
}

func (hub *EventHub) unregister(client *wsClient) {
	hub.mu.Lock()
	delete(hub.clients, client)
	hub.mu.Unlock()
}

func mustJSON(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
