// Package metrics provides Prometheus metrics for the lattice pricer
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PricingRequests 按payoff统计成功的定价请求
	PricingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricer_requests_total",
		Help: "Completed pricing requests by payoff kind",
	}, []string{"payoff"})

	// PricingFailures 按原因统计失败请求
	PricingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricer_failures_total",
		Help: "Failed pricing requests by reason",
	}, []string{"reason"})

	// PricingDuration 单次定价耗时分布
	PricingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricer_duration_seconds",
		Help:    "Wall time of one full pricing pipeline",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	// LastRootPrice 最近一次结果的根节点期权价
	LastRootPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricer_last_root_price",
		Help: "Root option price of the most recent result",
	})

	// LastSteps 最近一次结果的步数
	LastSteps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricer_last_steps",
		Help: "Lattice step count of the most recent result",
	})

	// LastGridNodes 最近一次结果的节点数
	LastGridNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricer_last_grid_nodes",
		Help: "Node count per grid of the most recent result",
	})

	// StoredResults 结果仓库当前大小
	StoredResults = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricer_stored_results",
		Help: "Number of results currently held in the store",
	})

	// WSClients 当前连接的渲染端数量
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricer_ws_clients",
		Help: "Connected websocket renderer clients",
	})
)

// ObserveRequest 记录一次成功定价
func ObserveRequest(payoff string, steps, nodes int, root float64, elapsed time.Duration) {
	PricingRequests.WithLabelValues(payoff).Inc()
	PricingDuration.Observe(elapsed.Seconds())
	LastRootPrice.Set(root)
	LastSteps.Set(float64(steps))
	LastGridNodes.Set(float64(nodes))
}

// RecordFailure 记录一次失败（reason: validation/arbitrage/canceled）
func RecordFailure(reason string) {
	PricingFailures.WithLabelValues(reason).Inc()
}

// UpdateStoreSize 更新结果仓库大小
func UpdateStoreSize(n int) {
	StoredResults.Set(float64(n))
}

// WSClientConnected 渲染端连接
func WSClientConnected() {
	WSClients.Inc()
}

// WSClientDisconnected 渲染端断开
func WSClientDisconnected() {
	WSClients.Dec()
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
