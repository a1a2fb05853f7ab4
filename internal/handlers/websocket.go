package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/config"
	"github.com/mafia-game/backend/internal/game"
	"github.com/mafia-game/backend/internal/models"
)

// Rooms is the part of the room registry the transport needs.
type Rooms interface {
	CreateRoom(hostConnID string, settings *models.Settings) (*game.Room, error)
	Join(code, connID, name string) error
	AddBot(code, connID, name string) error
	StartGame(code, connID string) error
	SubmitNightAction(code, connID string, choice *string) error
	SubmitVote(code, connID, target string) error
	SkipSpeakerTurn(code, connID string) error
	Leave(connID string)
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	hub  *Hub
}

// Hub tracks connected clients and delivers outbound events to them.
type Hub struct {
	clients  map[string]*Client
	mu       sync.RWMutex
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(cfg config.WebSocketConfig, allowedOrigin string, logger *zap.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongTimeout {
		cfg.PingInterval = cfg.PongTimeout * 9 / 10
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	return &Hub{
		clients: make(map[string]*Client),
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin == "*" || r.Header.Get("Origin") == allowedOrigin
			},
		},
		logger: logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client registered", zap.String("conn", c.ID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.Send)
		h.logger.Debug("client unregistered", zap.String("conn", c.ID))
	}
}

// Send implements game.Notifier. Events for unknown or saturated clients are dropped.
func (h *Hub) Send(connID, eventType string, payload interface{}) {
	data, err := json.Marshal(models.WSMessage{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("marshal outbound message", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("send buffer full, dropping message", zap.String("conn", connID), zap.String("type", eventType))
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:   uuid.New().String(),
			Conn: conn,
			Send: make(chan []byte, hub.cfg.SendBuffer),
			hub:  hub,
		}
		hub.register(client)

		go client.WritePump()
		go client.ReadPump(rooms)
	}
}

func (c *Client) ReadPump(rooms Rooms) {
	defer func() {
		rooms.Leave(c.ID)
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	cfg := c.hub.cfg
	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}

		var msg models.InboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Debug("malformed frame", zap.String("conn", c.ID), zap.Error(err))
			c.sendError("malformed message")
			continue
		}
		handleWebSocketMessage(c, rooms, &msg)
	}
}

func (c *Client) WritePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("websocket write failed", zap.String("conn", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func handleWebSocketMessage(c *Client, rooms Rooms, msg *models.InboundMessage) {
	var err error

	switch msg.Type {
	case models.EventCreateRoom:
		var p models.CreateRoomPayload
		if err = decode(msg.Payload, &p); err != nil {
			break
		}
		var room *game.Room
		if room, err = rooms.CreateRoom(c.ID, p.Settings); err == nil {
			c.hub.Send(c.ID, models.EventRoomCreated, models.RoomCreated{Code: room.Code})
		}

	case models.EventJoinRoom:
		var p models.JoinRoomPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = rooms.Join(p.RoomCode, c.ID, p.Name)
		}

	case models.EventAddBot:
		var p models.AddBotPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = rooms.AddBot(p.RoomCode, c.ID, p.Name)
		}

	case models.EventStartGame:
		var p models.RoomPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = rooms.StartGame(p.RoomCode, c.ID)
		}

	case models.EventSubmitNightAction:
		var p models.NightActionPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = rooms.SubmitNightAction(p.RoomCode, c.ID, p.Choice)
		}

	case models.EventSubmitVote:
		var p models.VotePayload
		if err = decode(msg.Payload, &p); err == nil {
			err = rooms.SubmitVote(p.RoomCode, c.ID, p.Target)
		}

	case models.EventSkipSpeakerTurn:
		var p models.RoomPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = rooms.SkipSpeakerTurn(p.RoomCode, c.ID)
		}

	case models.EventOffer, models.EventAnswer, models.EventICECandidate:
		var p models.SignalPayload
		if err = decode(msg.Payload, &p); err == nil {
			c.hub.Send(p.Target, msg.Type, models.SignalRelay{From: c.ID, Data: p.Data})
		}

	default:
		c.hub.logger.Debug("unknown message type", zap.String("conn", c.ID), zap.String("type", msg.Type))
		return
	}

	if err != nil {
		var gameErr *game.GameError
		if !errors.As(err, &gameErr) {
			c.hub.logger.Debug("bad payload", zap.String("conn", c.ID), zap.String("type", msg.Type), zap.Error(err))
			c.sendError("malformed message")
			return
		}
		c.sendError(err.Error())
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (c *Client) sendError(errMsg string) {
	c.hub.Send(c.ID, models.EventError, models.ErrorPayload{Error: errMsg})
}
