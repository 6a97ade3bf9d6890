package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewMail     MessageType = "new_mail"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Address   string          `json:"address,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	addresses map[string]bool // 订阅的地址
	mu        sync.Mutex
	log       *zap.Logger
}

// Hub 管理所有WebSocket连接，按收件地址分发新邮件事件
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	addresses      map[string]map[string]*Client // address -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	done           chan struct{}
	stopOnce       sync.Once
	mu             sync.RWMutex
	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	Address string
	Message *Message
}

// NewHub 创建WebSocket Hub
//
// allowedOrigins 为空时允许所有来源。
func NewHub(allowedOrigins []string, log *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		addresses:      make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, sendBuffer),
		done:           make(chan struct{}),
		log:            log,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动Hub，ctx 结束后断开所有客户端
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.stop()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			for address := range client.addresses {
				h.subscribeLocked(client, address)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWebSocketClients(count)
			h.log.Debug("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				client.mu.Lock()
				for address := range client.addresses {
					h.unsubscribeLocked(client, address)
				}
				client.mu.Unlock()
				delete(h.clients, client.ID)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWebSocketClients(count)
			h.log.Debug("client unregistered", zap.String("id", client.ID))

		case msg := <-h.broadcast:
			h.broadcastToAddress(msg.Address, msg.Message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NotifyNewMail 向订阅了 address 的客户端推送新邮件摘要
func (h *Hub) NotifyNewMail(ctx context.Context, address string, summary domain.MessageSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	msg := &BroadcastMessage{
		Address: address,
		Message: &Message{
			Type:      MessageTypeNewMail,
			Address:   address,
			Data:      data,
			Timestamp: time.Now().UTC(),
		},
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribers 返回订阅 address 的客户端数量
func (h *Hub) Subscribers(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.addresses[address])
}

// broadcastToAddress 向订阅特定地址的客户端广播消息
func (h *Hub) broadcastToAddress(address string, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.addresses[address] {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送应用层 ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{Type: MessageTypePing, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// stop 通知所有读写协程退出并关闭连接
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for _, client := range h.clients {
			if client.conn != nil {
				_ = client.conn.Close()
			}
		}
		h.clients = make(map[string]*Client)
		h.addresses = make(map[string]map[string]*Client)
	})
}

func (h *Hub) subscribeLocked(c *Client, address string) {
	if h.addresses[address] == nil {
		h.addresses[address] = make(map[string]*Client)
	}
	h.addresses[address][c.ID] = c
}

func (h *Hub) unsubscribeLocked(c *Client, address string) {
	if clients, ok := h.addresses[address]; ok {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(h.addresses, address)
		}
	}
}

// HandleWebSocket 处理WebSocket连接
//
// 可以通过 ?address= 在建立连接时订阅一个地址，之后也可以发送 subscribe 消息追加订阅。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:        uuid.NewString(),
			conn:      conn,
			send:      make(chan []byte, sendBuffer),
			hub:       hub,
			addresses: make(map[string]bool),
			log:       hub.log,
		}
		if address := strings.TrimSpace(c.Query("address")); address != "" {
			client.addresses[address] = true
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.done:
			return
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribe(strings.TrimSpace(msg.Address))
	case MessageTypeUnsubscribe:
		c.unsubscribe(strings.TrimSpace(msg.Address))
	case MessageTypePong:
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.log.Debug("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribe 订阅地址，地址区分大小写
func (c *Client) subscribe(address string) {
	if address == "" {
		c.sendMessage(&Message{Type: MessageTypeError, Error: "address is required", Timestamp: time.Now().UTC()})
		return
	}

	c.hub.mu.Lock()
	if _, registered := c.hub.clients[c.ID]; registered {
		c.hub.subscribeLocked(c, address)
	}
	c.hub.mu.Unlock()

	c.mu.Lock()
	c.addresses[address] = true
	c.mu.Unlock()

	c.sendMessage(&Message{Type: MessageTypeSubscribed, Address: address, Timestamp: time.Now().UTC()})
}

// unsubscribe 取消订阅
func (c *Client) unsubscribe(address string) {
	c.mu.Lock()
	delete(c.addresses, address)
	c.mu.Unlock()

	c.hub.mu.Lock()
	c.hub.unsubscribeLocked(c, address)
	c.hub.mu.Unlock()
}

// sendMessage 发送消息给客户端，缓冲区满时丢弃
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
