package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	appcfg "lattice-pricer-go/config"
	"lattice-pricer-go/infrastructure/logger"
	"lattice-pricer-go/internal/engine"
	"lattice-pricer-go/internal/store"
	"lattice-pricer-go/server"
)

const flowConfig = `
env: test
scenario:
  name: demo-call
  spot: 40
  strike: 40
  ratePct: 4
  sigmaPct: 30
  maturityYears: 0.5
  steps: 101
  payoff: call
pricer:
  workers: 1
  historyLimit: 16
  queueSize: 4
server:
  listenAddr: ":0"
  maxSteps: 10000
`

func writeFlowConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestPricingFlow 测试从配置文件到HTTP/WebSocket接口的完整定价链路
func TestPricingFlow(t *testing.T) {
	// 1. 加载配置
	cfgPath := writeFlowConfig(t, flowConfig)
	cfg, err := appcfg.LoadWithEnvOverrides(cfgPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化组件
	log, err := logger.New(logger.Config{
		Level:   "info",
		Outputs: []string{"stdout"},
		Format:  "console",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()

	st := store.New(cfg.Pricer.HistoryLimit, nil)

	var srv *server.Server
	eng, err := engine.New(engine.Config{
		Workers:      cfg.Pricer.Workers,
		HistoryLimit: cfg.Pricer.HistoryLimit,
		QueueSize:    cfg.Pricer.QueueSize,
	}, engine.Components{
		Logger: log,
		Store:  st,
		Broadcast: func(rec *store.Record) {
			if srv != nil {
				srv.Broadcast(rec)
			}
		},
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	srv = server.New(server.Config{MaxSteps: cfg.Server.MaxSteps}, eng, st, log)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// 3. 启动引擎并连接WebSocket
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}
	defer eng.Stop()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()
	waitFor(t, "ws client registration", func() bool { return srv.ClientCount() == 1 })

	// 4. 把配置场景入队，等待主循环定价入库
	params, err := cfg.Scenario.Parameters()
	if err != nil {
		t.Fatalf("Bad scenario: %v", err)
	}
	if err := eng.Submit(params); err != nil {
		t.Fatalf("Failed to submit scenario: %v", err)
	}
	waitFor(t, "scenario to be priced", func() bool { return st.Len() == 1 })

	// 5. WebSocket应收到广播帧，HTTP latest应返回同一结果
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame server.WSFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read broadcast frame: %v", err)
	}
	if frame.Type != "result" || frame.Data.Steps != 101 {
		t.Fatalf("Unexpected frame: %+v", frame)
	}

	resp, err := http.Get(ts.URL + "/api/v1/results/latest")
	if err != nil {
		t.Fatalf("Failed to query latest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from latest, got %d", resp.StatusCode)
	}
	var latest server.ResultDetail
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		t.Fatalf("Failed to decode latest: %v", err)
	}
	if latest.ID != frame.Data.ID {
		t.Fatalf("Latest result %s does not match broadcast %s", latest.ID, frame.Data.ID)
	}

	// 101步的平值call应落在闭式解附近
	root := latest.Root.InexactFloat64()
	if root < 3.70 || root > 3.80 {
		t.Fatalf("Root price %.6f outside expected band [3.70, 3.80]", root)
	}

	// 6. 通过HTTP再定价一个put，历史应增长
	body := `{"spot":40,"strike":40,"rate_pct":4,"sigma_pct":30,"maturity_years":0.5,"steps":101,"payoff":"put"}`
	resp2, err := http.Post(ts.URL+"/api/v1/price", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("Failed to post price request: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from price, got %d", resp2.StatusCode)
	}
	if st.Len() != 2 {
		t.Fatalf("Expected 2 stored results, got %d", st.Len())
	}
}

// TestWatcherRepriceFlow 配置文件监听路径：首次轮询即触发定价
func TestWatcherRepriceFlow(t *testing.T) {
	cfgPath := writeFlowConfig(t, flowConfig)

	log, err := logger.New(logger.Config{
		Level:   "warn",
		Outputs: []string{"stdout"},
		Format:  "console",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()

	st := store.New(16, nil)
	eng, err := engine.New(engine.Config{Workers: 1, QueueSize: 4}, engine.Components{
		Logger: log,
		Store:  st,
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}
	defer eng.Stop()

	w := appcfg.Watcher{Path: cfgPath, Interval: 20 * time.Millisecond}
	go func() {
		_ = w.Start(ctx, func(cfg appcfg.AppConfig) {
			if params, err := cfg.Scenario.Parameters(); err == nil {
				_ = eng.Submit(params)
			}
		})
	}()

	waitFor(t, "watcher-triggered pricing", func() bool { return st.Len() >= 1 })

	rec, ok := st.Latest()
	if !ok || rec.Params.Steps != 101 {
		t.Fatalf("Unexpected stored record: %+v", rec)
	}
}
