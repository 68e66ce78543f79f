// Package server 提供定价服务的HTTP与WebSocket对外接口。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lattice-pricer-go/infrastructure/logger"
	"lattice-pricer-go/internal/engine"
	"lattice-pricer-go/internal/store"
)

// statusClientClosedRequest 非标准状态码，nginx约定的
// "客户端在响应前关闭了请求"，用于标记被取消的定价。
const statusClientClosedRequest = 499

const maxRequestBody = 1 << 20

// Config HTTP服务配置
type Config struct {
	ListenAddr     string
	RequestTimeout time.Duration // 单次定价允许的最长时间，0表示不限制
	MaxSteps       int           // 单请求允许的最大步数，0表示不限制
}

// Server 对外HTTP+WebSocket服务
type Server struct {
	config Config
	engine *engine.Engine
	store  *store.ResultStore
	logger *logger.Logger
	hub    *Hub

	httpServer *http.Server
	stopHub    chan struct{}
	started    bool
	mu         sync.Mutex
}

// New 创建服务实例
func New(cfg Config, eng *engine.Engine, st *store.ResultStore, log *logger.Logger) *Server {
	return &Server{
		config:  cfg,
		engine:  eng,
		store:   st,
		logger:  log,
		hub:     newHub(log),
		stopHub: make(chan struct{}),
	}
}

// Broadcast 把新结果推送给所有WebSocket客户端。
// 作为回调挂到引擎的Components.Broadcast上。
func (s *Server) Broadcast(rec *store.Record) {
	s.hub.Broadcast(WSFrame{Type: "result", Data: summaryFromRecord(rec)})
}

// ClientCount 返回当前WebSocket连接数
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// Handler 返回完整路由；测试可直接挂到httptest.Server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/price", s.handlePrice)
	mux.HandleFunc("GET /api/v1/results/latest", s.handleLatest)
	mux.HandleFunc("GET /api/v1/results/{id}", s.handleResult)
	mux.HandleFunc("GET /api/v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.hub.handleWS)
	return mux
}

// Start 在后台启动HTTP服务
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	srv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv

	go s.hub.run(s.stopHub)

	// 在后台启动服务器
	go func() {
		s.logger.Info(fmt.Sprintf("api server listening on %s", s.config.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.LogError(err, map[string]interface{}{
				"component": "api_server",
				"action":    "listen",
			})
		}
	}()

	s.started = true
	return nil
}

// Stop 优雅关闭：先停HTTP，再断开WebSocket客户端
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	close(s.stopHub)
	s.started = false

	if err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Health 组件健康检查
func (s *Server) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("api server not started")
	}
	return nil
}

// handlePrice 同步定价一个请求体场景
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode request: %v", err))
		return
	}

	params, err := req.Parameters()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if s.config.MaxSteps > 0 && params.Steps > s.config.MaxSteps {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("steps %d exceeds server limit %d", params.Steps, s.config.MaxSteps))
		return
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	rec, err := s.engine.Price(ctx, params)
	if err != nil {
		s.writePricingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detailFromRecord(rec, wantGrids(r)))
}

// handleResult 按ID查询历史结果
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("result %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, detailFromRecord(rec, wantGrids(r)))
}

// handleLatest 查询最近一次结果
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no result computed yet")
		return
	}
	writeJSON(w, http.StatusOK, detailFromRecord(rec, wantGrids(r)))
}

// handleHealthz 存活探针，附带引擎状态
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"engine":     s.engine.GetState().String(),
		"results":    s.store.Len(),
		"ws_clients": s.hub.ClientCount(),
	})
}

// writePricingError 把定价错误映射到HTTP状态码
func (s *Server) writePricingError(w http.ResponseWriter, err error) {
	reason := engine.FailureReason(err)
	status := http.StatusInternalServerError
	switch reason {
	case "validation":
		status = http.StatusBadRequest
	case "arbitrage":
		status = http.StatusUnprocessableEntity
	case "canceled":
		status = statusClientClosedRequest
	}
	writeError(w, status, reason, err.Error())
}

func wantGrids(r *http.Request) bool {
	switch r.URL.Query().Get("grids") {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Reason: reason})
}
