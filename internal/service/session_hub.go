package service

import (
	"activity_engine/pkg/logger"
	"activity_engine/pkg/monitoring"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

const (
	MsgTick      = "TICK"
	MsgExpired   = "EXPIRED"
	MsgCompleted = "COMPLETED"
	MsgSnapshot  = "SNAPSHOT"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client 是订阅某个会话的一个 websocket 连接
type Client struct {
	Hub       *SessionHub
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string
	Limiter   *rate.Limiter
}

// readPump 只用于处理 pong 和关闭；客户端上行消息被丢弃
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.String("sessionId", c.SessionID))
			}
			return
		}
		if !c.Limiter.Allow() {
			logger.Log.Debug("WebSocket client over limit", zap.String("sessionId", c.SessionID))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SessionHub 按会话 ID 分组推送事件
type SessionHub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	closed  bool
}

func NewSessionHub() *SessionHub {
	return &SessionHub{clients: make(map[string]map[*Client]struct{})}
}

func (h *SessionHub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.SessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.SessionID] = set
	}
	set[c] = struct{}{}
	monitoring.HubConnections.Inc()
	return true
}

func (h *SessionHub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	monitoring.HubConnections.Dec()
	if len(set) == 0 {
		delete(h.clients, c.SessionID)
	}
}

// Watching 会话是否有在线订阅者
func (h *SessionHub) Watching(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID]) > 0
}

// Notify 非阻塞推送，发送缓冲满时丢弃该条消息
func (h *SessionHub) Notify(sessionID string, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("WebSocket message encode failed", zap.Error(err), zap.String("type", msg.Type))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[sessionID] {
		select {
		case c.Send <- payload:
		default:
		}
	}
}

// CloseSession 断开某个会话的所有订阅者
func (h *SessionHub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		close(c.Send)
		monitoring.HubConnections.Dec()
	}
	delete(h.clients, sessionID)
}

// Stop 关闭所有连接
func (h *SessionHub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for id, set := range h.clients {
		for c := range set {
			close(c.Send)
			n++
		}
		delete(h.clients, id)
	}
	h.closed = true
	monitoring.HubConnections.Set(0)
	logger.Log.Info("SessionHub stopped", zap.Int("closedConnections", n))
}

// ServeWs 升级连接并先推送 initial；finished 为 true 时推送后直接关闭
func ServeWs(hub *SessionHub, w http.ResponseWriter, r *http.Request, sessionID string, initial WSMessage, finished bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.String("sessionId", sessionID))
		return
	}
	client := &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		SessionID: sessionID,
		Limiter:   rate.NewLimiter(rate.Limit(5), 10),
	}
	// 注册前写入，此时 Send 还未被 hub 持有
	if payload, err := json.Marshal(initial); err == nil {
		client.Send <- payload
	}
	if finished {
		close(client.Send)
		go client.writePump()
		return
	}
	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
