package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/services"
)

const (
	EventPing          = "PING"
	EventPong          = "PONG"
	EventBalanceUpdate = "BALANCE_UPDATE"
	EventError         = "ERROR"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler is the outcome authority socket. It answers
// "<game>:play" frames with "<game>:result" and pushes balance updates.
type WebSocketHandler struct {
	authority    *services.OutcomeAuthority
	redisService *services.RedisService
	hub          *WebSocketHub
	logger       *slog.Logger
}

type WebSocketHub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

// Message is a frame addressed to every connection of one user.
type Message struct {
	UserID int64
	Frame  models.Envelope
}

func NewWebSocketHandler(authority *services.OutcomeAuthority, redisService *services.RedisService, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = logging.Discard()
	}

	hub := &WebSocketHub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		done:       make(chan struct{}),
		logger:     logger,
	}

	go hub.run()

	return &WebSocketHandler{
		authority:    authority,
		redisService: redisService,
		hub:          hub,
		logger:       logger,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket", "user_id", userID, "error", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	if !h.hub.add(client) {
		conn.Close()
		return
	}

	defer func() {
		h.hub.remove(client)
		conn.Close()
	}()

	h.sendBalance(ctx, client)

	for {
		var msg models.Envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "user_id", userID, "error", err)
			}
			return
		}

		h.handleMessage(ctx, client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *Client, msg *models.Envelope) {
	if msg.Event == EventPing {
		h.send(client, EventPong, gin.H{"timestamp": time.Now().Unix()})
		return
	}

	game, ok := games.ByEvent(msg.Event)
	if !ok || msg.Event != game.PlayEvent {
		h.logger.Debug("ignoring websocket event", "user_id", client.UserID, "event", msg.Event)
		return
	}

	h.playRound(ctx, client, game, msg.Data)
}

func (h *WebSocketHandler) playRound(ctx context.Context, client *Client, game games.Game, data json.RawMessage) {
	var req models.RoundRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.send(client, EventError, gin.H{"error": "Invalid round request", "details": err.Error()})
		return
	}

	nonce, err := h.redisService.NextNonce(ctx, client.UserID)
	if err != nil {
		h.logger.Error("failed to advance nonce", "user_id", client.UserID, "error", err)
		h.send(client, EventError, gin.H{"error": "Round could not be resolved"})
		return
	}

	res := h.authority.Resolve(game, req.ClientSeed, nonce, req.Choice)

	h.logger.Info("round resolved",
		"user_id", client.UserID,
		"game_id", game.ID,
		"round_id", req.RoundID,
		"outcome", res.Value(),
		"nonce", nonce,
	)
	h.send(client, game.ResultEvent, res)
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	wallet, err := h.redisService.GetWallet(ctx, client.UserID)
	if err != nil {
		h.logger.Warn("failed to get wallet for websocket", "user_id", client.UserID, "error", err)
		return
	}

	h.send(client, EventBalanceUpdate, wallet.Response())
}

func (h *WebSocketHandler) send(client *Client, event string, payload any) {
	frame, err := models.NewEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to encode websocket frame", "event", event, "error", err)
		return
	}

	if err := client.write(frame); err != nil {
		h.logger.Debug("websocket write failed", "user_id", client.UserID, "event", event, "error", err)
	}
}

// NotifyBalance queues a balance push; it never blocks the caller.
func (h *WebSocketHandler) NotifyBalance(userID int64, balance models.BalanceResponse) {
	frame, err := models.NewEnvelope(EventBalanceUpdate, balance)
	if err != nil {
		return
	}

	select {
	case h.hub.broadcast <- &Message{UserID: userID, Frame: frame}:
	default:
		h.logger.Warn("balance update dropped", "user_id", userID)
	}
}

// Close stops the hub. Open connections are closed when their handlers
// return.
func (h *WebSocketHandler) Close() {
	h.hub.closeOnce.Do(func() { close(h.hub.done) })
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

func (hub *WebSocketHub) add(client *Client) bool {
	select {
	case hub.register <- client:
		return true
	case <-hub.done:
		return false
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	select {
	case hub.unregister <- client:
	case <-hub.done:
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			conns, ok := hub.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				hub.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			hub.logger.Debug("client registered", "user_id", client.UserID, "connections", len(conns))

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.UserID]; ok {
				delete(conns, client)
				if len(conns) == 0 {
					delete(hub.clients, client.UserID)
				}
				hub.logger.Debug("client unregistered", "user_id", client.UserID)
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)

		case <-hub.done:
			return
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for client := range hub.clients[message.UserID] {
		if err := client.write(message.Frame); err != nil {
			hub.logger.Debug("broadcast write failed", "user_id", client.UserID, "error", err)
		}
	}
}
