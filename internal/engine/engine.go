package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lattice-pricer-go/infrastructure/alert"
	"lattice-pricer-go/infrastructure/logger"
	"lattice-pricer-go/internal/store"
	"lattice-pricer-go/lattice"
	"lattice-pricer-go/metrics"
)

// EngineState 引擎状态
type EngineState int

const (
	StateIdle EngineState = iota
	StateRunning
	StateStopped
)

// String 返回状态的字符串表示
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config 引擎配置
type Config struct {
	Workers      int // 回推并行度，0表示使用GOMAXPROCS
	HistoryLimit int // 结果历史保留条数
	QueueSize    int // Submit异步队列长度
}

// Components 引擎依赖的组件
type Components struct {
	Logger       *logger.Logger
	Store        *store.ResultStore
	AlertManager *alert.Manager      // 可为nil
	Broadcast    func(*store.Record) // 定价成功后的推送回调，可为nil
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime     time.Time
	TotalPriced   int64
	TotalRejected int64
	TotalCanceled int64
	LastRoot      float64
	LastPricedAt  time.Time
}

// Engine 定价引擎，驱动 参数校验 -> 建树 -> 回推 -> 入库 -> 推送 的完整管线
type Engine struct {
	config Config

	pricer    *lattice.Pricer
	store     *store.ResultStore
	logger    *logger.Logger
	alertMgr  *alert.Manager
	broadcast func(*store.Record)

	state   EngineState
	stateMu sync.RWMutex

	requests chan lattice.Parameters
	stopChan chan struct{}
	doneChan chan struct{}

	stats   Statistics
	statsMu sync.RWMutex
}

// New 创建定价引擎实例
func New(config Config, components Components) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}

	return &Engine{
		config:    config,
		pricer:    lattice.NewPricer(lattice.PricerConfig{Workers: config.Workers}),
		store:     components.Store,
		logger:    components.Logger,
		alertMgr:  components.AlertManager,
		broadcast: components.Broadcast,
		state:     StateIdle,
		requests:  make(chan lattice.Parameters, queueSize),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// validateConfig 验证引擎配置
func validateConfig(config Config) error {
	if config.Workers < 0 {
		return fmt.Errorf("workers cannot be negative: %d", config.Workers)
	}
	if config.HistoryLimit < 0 {
		return fmt.Errorf("history limit cannot be negative: %d", config.HistoryLimit)
	}
	if config.QueueSize < 0 {
		return fmt.Errorf("queue size cannot be negative: %d", config.QueueSize)
	}
	return nil
}

// validateComponents 验证依赖组件
func validateComponents(components Components) error {
	if components.Logger == nil {
		return errors.New("logger is required")
	}
	if components.Store == nil {
		return errors.New("result store is required")
	}
	return nil
}

// Start 启动引擎主循环
func (e *Engine) Start(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.state == StateRunning {
		return errors.New("engine is already running")
	}

	// 停止后重新启动时需要重建通道
	if e.state == StateStopped {
		e.stopChan = make(chan struct{})
		e.doneChan = make(chan struct{})
	}

	e.state = StateRunning

	e.statsMu.Lock()
	e.stats.StartTime = time.Now()
	e.statsMu.Unlock()

	go e.run(ctx)

	e.logger.Info("定价引擎已启动",
		zap.Int("workers", e.config.Workers),
		zap.Int("queue_size", cap(e.requests)))
	return nil
}

// Stop 停止引擎，幂等
func (e *Engine) Stop() error {
	e.stateMu.Lock()
	if e.state != StateRunning {
		e.stateMu.Unlock()
		return nil
	}
	close(e.stopChan)
	e.stateMu.Unlock()

	// 等待主循环退出
	select {
	case <-e.doneChan:
	case <-time.After(10 * time.Second):
		e.logger.Warn("等待引擎主循环退出超时")
	}

	e.stateMu.Lock()
	e.state = StateStopped
	e.stateMu.Unlock()

	e.logger.Info("定价引擎已停止")
	return nil
}

// run 主循环：消费Submit队列中的重定价请求
func (e *Engine) run(ctx context.Context) {
	defer close(e.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case params := <-e.requests:
			// 队列路径的失败只记录，不中断循环
			if _, err := e.Price(ctx, params); err != nil {
				e.logger.Warn("队列定价请求失败", zap.Error(err))
			}
		}
	}
}

// Submit 将一次重定价请求非阻塞地放入队列，由主循环执行。
// 引擎未运行或队列已满时返回错误。
func (e *Engine) Submit(params lattice.Parameters) error {
	if e.GetState() != StateRunning {
		return errors.New("engine is not running")
	}
	select {
	case e.requests <- params:
		return nil
	default:
		return errors.New("request queue is full")
	}
}

// Price runs the full pipeline for one scenario: validate, build the
// price tree, induce values, persist the record and notify subscribers.
// It is safe to call concurrently and does not require Start.
func (e *Engine) Price(ctx context.Context, params lattice.Parameters) (*store.Record, error) {
	id := uuid.New().String()

	result, err := e.pricer.Price(ctx, params)
	if err != nil {
		e.recordFailure(id, params, err)
		return nil, err
	}

	record := &store.Record{
		ID:         id,
		Params:     result.Params,
		Derived:    result.Derived,
		Prices:     result.Prices,
		Values:     result.Values,
		Root:       result.Root,
		Elapsed:    result.Elapsed,
		ComputedAt: time.Now(),
	}
	e.store.Put(record)

	nodes := (params.Steps + 1) * (params.Steps + 2) / 2
	metrics.ObserveRequest(params.Payoff.String(), params.Steps, nodes, result.Root, result.Elapsed)

	e.statsMu.Lock()
	e.stats.TotalPriced++
	e.stats.LastRoot = result.Root
	e.stats.LastPricedAt = time.Now()
	e.statsMu.Unlock()

	e.logger.LogPricing("priced", id, map[string]interface{}{
		"payoff":     params.Payoff.String(),
		"steps":      params.Steps,
		"root":       result.Root,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})

	if e.broadcast != nil {
		e.broadcast(record)
	}
	return record, nil
}

// recordFailure 统一处理失败路径的指标、日志与计数
func (e *Engine) recordFailure(id string, params lattice.Parameters, err error) {
	reason := FailureReason(err)
	metrics.RecordFailure(reason)

	e.statsMu.Lock()
	if reason == "canceled" {
		e.stats.TotalCanceled++
	} else {
		e.stats.TotalRejected++
	}
	e.statsMu.Unlock()

	switch reason {
	case "validation", "arbitrage":
		e.logger.LogReject(reason, map[string]interface{}{
			"request_id": id,
			"payoff":     params.Payoff.String(),
			"steps":      params.Steps,
			"error":      err.Error(),
		})
	default:
		e.logger.LogError(err, map[string]interface{}{"request_id": id})
	}

	// 只对套利破坏和内部错误告警，普通校验失败和取消不告警
	if e.alertMgr == nil {
		return
	}
	switch reason {
	case "arbitrage":
		e.alertMgr.SendWarning(fmt.Sprintf("无套利条件被破坏: %v", err), map[string]interface{}{
			"request_id": id,
			"payoff":     params.Payoff.String(),
			"steps":      params.Steps,
		})
	case "internal":
		e.alertMgr.SendError(fmt.Sprintf("定价内部错误: %v", err), map[string]interface{}{
			"request_id": id,
		})
	}
}

// FailureReason 将定价错误归类为指标标签
func FailureReason(err error) string {
	var validationErr *lattice.ValidationError
	if errors.As(err, &validationErr) {
		return "validation"
	}
	var arbitrageErr *lattice.ArbitrageError
	if errors.As(err, &arbitrageErr) {
		return "arbitrage"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}

// GetState 获取引擎当前状态
func (e *Engine) GetState() EngineState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// GetStatistics 获取统计信息快照
func (e *Engine) GetStatistics() Statistics {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}
