package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qs3c/codemorph_server/internal/pkg/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub 按用户维护积分推送连接
type Hub struct {
	// 同一用户可能同时在网页和 IDE 插件上在线
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
	mu     sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}

	slog.Debug("ws connected", "user_id", client.UserID, "user_conns", len(h.clients[client.UserID]))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	slog.Debug("ws disconnected", "user_id", client.UserID)
}

// Serve 注册连接并阻塞到连接断开
//
// 客户端只接收推送，读循环仅用于处理 pong 和发现断开。
func (h *Hub) Serve(userID int64, conn *websocket.Conn) {
	client := &Client{UserID: userID, Conn: conn}
	h.Register(client)
	defer h.drop(client)

	done := make(chan struct{})
	defer close(done)
	go client.keepalive(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.Unregister(client)
	_ = client.Conn.Close()
}

func (c *Client) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// SendToUser 向指定用户的所有连接发送消息，用户不在线时直接返回
func (h *Hub) SendToUser(userID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			// 写失败的连接直接摘除，读循环随之退出
			slog.Warn("ws write failed", "user_id", userID, "error", err)
			h.drop(c)
		}
	}
	return nil
}

// ForwardLedgerEvent 将账本事件推送给对应用户
func (h *Hub) ForwardLedgerEvent(evt *pubsub.LedgerEvent) {
	if err := h.SendToUser(evt.UserID, &Message{Type: evt.Type, Data: evt}); err != nil {
		slog.Warn("forward ledger event failed", "user_id", evt.UserID, "error", err)
	}
}

// PublishLedgerEvent 单实例部署（无 Redis）时直接推送本机连接
func (h *Hub) PublishLedgerEvent(_ context.Context, evt *pubsub.LedgerEvent) error {
	h.ForwardLedgerEvent(evt)
	return nil
}

// IsOnline 检查用户是否在线
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[userID]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// CloseAll 关闭全部连接（服务退出时调用）
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for c := range conns {
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			_ = c.Conn.Close()
		}
		delete(h.clients, userID)
	}
}
