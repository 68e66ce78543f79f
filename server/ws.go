package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lattice-pricer-go/infrastructure/logger"
	"lattice-pricer-go/metrics"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsReadLimit    = 512
)

// wsClient 包装一条连接；写操作由互斥锁串行化
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub 管理WebSocket客户端集合，把每次定价结果广播给所有连接
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub(log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 渲染客户端可能来自任意来源
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  log,
		clients: make(map[*wsClient]struct{}),
	}
}

// handleWS 升级连接并开始跟踪客户端
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket升级失败", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.WSClientConnected()
	h.logger.Info("websocket客户端已连接", zap.String("remote", conn.RemoteAddr().String()))

	go h.readLoop(client)
}

// readLoop 只用于探测断开；客户端发来的数据被忽略
func (h *Hub) readLoop(client *wsClient) {
	defer h.drop(client)

	client.conn.SetReadLimit(wsReadLimit)
	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

// run 周期性ping所有客户端，不响应的连接被踢掉
func (h *Hub) run(stop <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			h.closeAll()
			return
		case <-ticker.C:
			for _, client := range h.snapshot() {
				if err := client.ping(); err != nil {
					h.drop(client)
				}
			}
		}
	}
}

// Broadcast 把结果帧发给所有客户端；写失败的连接直接移除
func (h *Hub) Broadcast(frame WSFrame) {
	for _, client := range h.snapshot() {
		if err := client.writeJSON(frame); err != nil {
			h.logger.Warn("websocket推送失败，移除客户端", zap.Error(err))
			h.drop(client)
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// drop 幂等移除客户端并关闭连接
func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if ok {
		_ = client.conn.Close()
		metrics.WSClientDisconnected()
	}
}

func (h *Hub) closeAll() {
	for _, client := range h.snapshot() {
		h.drop(client)
	}
}
