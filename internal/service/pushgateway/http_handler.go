package pushgateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"supplyboost/internal/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 演示环境放开跨域
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler 暴露 WebSocket 接入端点和通知服务的回调端点。
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.serveWs)
	mux.HandleFunc("POST /internal/notify", h.notify)
}

func (h *Handler) serveWs(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h.hub, conn: conn, send: make(chan []byte, 256), userID: userID}
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// notify 接收通知服务 WEBHOOK 渠道的站内信并推给在线用户。
// 用户不在线直接丢弃：WebSocket 推送只服务在线场景，离线触达走邮件/短信渠道。
func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID uint64 `json:"userId"`
	}
	body := json.NewDecoder(r.Body)
	raw := json.RawMessage{}
	if err := body.Decode(&raw); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	delivered := h.hub.Push(payload.UserID, raw)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"delivered": delivered})
}
