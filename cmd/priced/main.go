package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "lattice-pricer-go/config"
	"lattice-pricer-go/infrastructure/alert"
	"lattice-pricer-go/infrastructure/logger"
	hotcfg "lattice-pricer-go/internal/config"
	"lattice-pricer-go/internal/engine"
	"lattice-pricer-go/internal/store"
	"lattice-pricer-go/metrics"
	"lattice-pricer-go/server"
)

func main() {
	cfgPath := flag.String("config", "configs/priced.yaml", "配置文件路径")
	envFile := flag.String("env", "", ".env 文件路径，留空则尝试当前目录")
	noReload := flag.Bool("noReload", false, "关闭配置文件热更新")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("加载env文件失败: %v", err)
		}
	} else {
		// 当前目录没有 .env 也没关系
		_ = godotenv.Load()
	}

	cfg, err := appcfg.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	if cfg.Server.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.Server.MetricsAddr)
		zlog.Info("metrics server started", zap.String("addr", cfg.Server.MetricsAddr))
	}

	st := store.New(cfg.Pricer.HistoryLimit, func(event string, fields map[string]interface{}) {
		id, _ := fields["request_id"].(string)
		zlog.LogPricing(event, id, fields)
	})

	// 同一条告警30秒内只发一次
	alertMgr := alert.NewManager([]alert.Channel{
		alert.NewLogChannel("zap", zlog),
	}, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *server.Server
	eng, err := engine.New(engine.Config{
		Workers:      cfg.Pricer.Workers,
		HistoryLimit: cfg.Pricer.HistoryLimit,
		QueueSize:    cfg.Pricer.QueueSize,
	}, engine.Components{
		Logger:       zlog,
		Store:        st,
		AlertManager: alertMgr,
		Broadcast: func(rec *store.Record) {
			if srv != nil {
				srv.Broadcast(rec)
			}
		},
	})
	if err != nil {
		log.Fatalf("初始化引擎失败: %v", err)
	}

	srv = server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutMs) * time.Millisecond,
		MaxSteps:       cfg.Server.MaxSteps,
	}, eng, st, zlog)

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("启动引擎失败: %v", err)
	}
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("启动HTTP服务失败: %v", err)
	}

	// 启动时先把配置里的场景定价一次，/results/latest 立即可用
	if params, err := cfg.Scenario.Parameters(); err == nil {
		if err := eng.Submit(params); err != nil {
			zlog.Warn("初始定价入队失败", zap.Error(err))
		}
	}

	// 配置文件热更新：写入配置 -> 重新定价 -> WebSocket广播
	var reloader *hotcfg.HotReloader
	if !*noReload {
		reloader, err = hotcfg.NewHotReloader(*cfgPath, hotcfg.DefaultHotReloadConfig(), zlog)
		if err != nil {
			zlog.Warn("创建热更新器失败", zap.Error(err))
		} else {
			reloader.SetReloadHandler(func(newCfg appcfg.AppConfig) error {
				params, err := newCfg.Scenario.Parameters()
				if err != nil {
					return err
				}
				return eng.Submit(params)
			})
			if err := reloader.Start(ctx); err != nil {
				zlog.Warn("启动热更新失败", zap.Error(err))
			}
		}
	}

	// systemd 就绪通知；非systemd环境返回 false,nil，忽略
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		zlog.Warn("systemd通知失败", zap.Error(err))
	}

	zlog.Info("priced 已启动",
		zap.String("env", cfg.Env),
		zap.String("listen", cfg.Server.ListenAddr),
		zap.String("scenario", cfg.Scenario.Name))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("收到退出信号，开始优雅关闭")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if reloader != nil {
		_ = reloader.Stop()
	}
	if err := srv.Stop(); err != nil {
		zlog.Warn("HTTP服务关闭失败", zap.Error(err))
	}
	if err := eng.Stop(); err != nil {
		zlog.Warn("引擎关闭失败", zap.Error(err))
	}
	cancel()
	zlog.Info("priced 已退出")
}
