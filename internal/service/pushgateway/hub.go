package pushgateway

import (
	"context"
	"sync"

	"supplyboost/internal/pkg/logger"
)

// Hub 维护所有活跃的 WebSocket 连接，按 userID 索引。
// 同一用户重复连接时新连接顶掉旧连接。
type Hub struct {
	clients    map[uint64]*Client
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 驱动注册/注销循环，适配 bootstrap 的 Runner 形态。
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			if old, ok := h.clients[client.userID]; ok {
				close(old.send)
			}
			h.clients[client.userID] = client
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Uint64("user_id", client.userID).Msg("websocket client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Uint64("user_id", client.userID).Msg("websocket client unregistered")
		case <-ctx.Done():
			h.lock.Lock()
			for _, client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[uint64]*Client)
			h.lock.Unlock()
			return ctx.Err()
		}
	}
}

// Push 给指定用户投递一条消息。用户不在线返回 false，调用方自行决定丢弃还是落库。
func (h *Hub) Push(userID uint64, payload []byte) bool {
	h.lock.RLock()
	client, ok := h.clients[userID]
	h.lock.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		// 写缓冲满说明连接已经不健康，交给 writePump 收尾
		return false
	}
}
