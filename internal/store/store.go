package store

import (
	"sync"
	"time"

	"lattice-pricer-go/lattice"
	"lattice-pricer-go/metrics"
)

// EventSink 接收仓库事件，用于结构化日志
type EventSink func(event string, fields map[string]interface{})

// Record 一次完成的定价请求及其结果
type Record struct {
	ID         string
	Params     lattice.Parameters
	Derived    lattice.Derived
	Prices     *lattice.Grid
	Values     *lattice.Grid
	Root       float64
	Elapsed    time.Duration
	ComputedAt time.Time
}

// ResultStore 维护最近一次定价结果以及按请求ID索引的有界历史。
// 读操作可并发；写入超出容量时按先进先出淘汰最旧记录。
type ResultStore struct {
	mu     sync.RWMutex
	limit  int
	byID   map[string]*Record
	order  []string
	latest *Record

	sink EventSink
}

const defaultHistoryLimit = 128

// New 创建结果仓库，limit <= 0 时使用默认容量
func New(limit int, sink EventSink) *ResultStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &ResultStore{
		limit: limit,
		byID:  make(map[string]*Record, limit),
		order: make([]string, 0, limit),
		sink:  sink,
	}
}

// Put 写入一条记录并按需要淘汰最旧记录。记录写入后视为只读。
func (s *ResultStore) Put(rec *Record) {
	if rec == nil || rec.ID == "" {
		return
	}

	s.mu.Lock()
	if _, exists := s.byID[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.byID[rec.ID] = rec
	s.latest = rec

	var evicted string
	if len(s.order) > s.limit {
		evicted = s.order[0]
		s.order = s.order[1:]
		delete(s.byID, evicted)
	}
	size := len(s.order)
	s.mu.Unlock()

	metrics.UpdateStoreSize(size)
	fields := map[string]interface{}{
		"request_id": rec.ID,
		"payoff":     rec.Params.Payoff.String(),
		"steps":      rec.Params.Steps,
		"root":       rec.Root,
		"elapsed_ms": float64(rec.Elapsed.Microseconds()) / 1000,
		"stored":     size,
	}
	if evicted != "" {
		fields["evicted_id"] = evicted
	}
	s.logEvent("result_stored", fields)
}

// Get 按请求ID查找记录
func (s *ResultStore) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok
}

// Latest 返回最近写入的记录
func (s *ResultStore) Latest() (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// IDs 返回当前持有的请求ID副本，从最旧到最新
func (s *ResultStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len 当前持有的记录数
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *ResultStore) logEvent(event string, fields map[string]interface{}) {
	if s == nil || s.sink == nil {
		return
	}
	s.sink(event, fields)
}
