package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	appcfg "lattice-pricer-go/config"
	"lattice-pricer-go/infrastructure/logger"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免编辑器连续写入触发重复定价
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 2 * time.Second,
	}
}

// ReloadHandler 在配置文件成功重新加载后被调用
type ReloadHandler func(cfg appcfg.AppConfig) error

// HotReloader 配置热更新器：监听配置文件写入，重新加载并通知处理函数
type HotReloader struct {
	config     HotReloadConfig
	configPath string
	watcher    *fsnotify.Watcher
	logger     *logger.Logger
	lastReload time.Time
	mu         sync.RWMutex
	stopChan   chan struct{}
	doneChan   chan struct{}
	handler    ReloadHandler
}

// NewHotReloader 创建热更新器
func NewHotReloader(configPath string, cfg HotReloadConfig, log *logger.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &HotReloader{
		config:     cfg,
		configPath: configPath,
		watcher:    watcher,
		logger:     log,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// SetReloadHandler 设置重载处理函数
func (h *HotReloader) SetReloadHandler(handler ReloadHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Start 启动热更新监听
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}

	// 添加配置文件到监听
	if err := h.watcher.Add(h.configPath); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	go h.watch(ctx)

	return nil
}

// Stop 停止热更新
func (h *HotReloader) Stop() error {
	if !h.config.Enabled {
		// 如果没有启用，直接关闭 watcher
		if h.watcher != nil {
			return h.watcher.Close()
		}
		return nil
	}

	// 发送停止信号
	select {
	case <-h.stopChan:
		// 已经停止
	default:
		close(h.stopChan)
	}

	// 等待 goroutine 结束（带超时）
	select {
	case <-h.doneChan:
		// 正常结束
	case <-time.After(1 * time.Second):
		// 超时，可能 watch goroutine 没有启动
	}

	if h.watcher != nil {
		return h.watcher.Close()
	}

	return nil
}

// watch 监听文件变化
func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// 只处理写入和创建事件
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				h.handleConfigChange()
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			// 记录错误但继续监听
			h.logger.Warn("配置监听出错", zap.Error(err))
		}
	}
}

// handleConfigChange 处理配置变化：冷却期内的写入被忽略
func (h *HotReloader) handleConfigChange() {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 检查冷却时间
	if time.Since(h.lastReload) < h.config.CooldownTime {
		return
	}

	cfg, err := appcfg.LoadWithEnvOverrides(h.configPath)
	if err != nil {
		// 配置文件非法时保持旧配置
		h.logger.Warn("配置重载失败，保持当前配置", zap.Error(err))
		return
	}

	if h.handler != nil {
		if err := h.handler(cfg); err != nil {
			h.logger.Warn("配置重载处理失败", zap.Error(err))
			return
		}
	}

	h.lastReload = time.Now()
	h.logger.Info("配置已重载", zap.String("path", h.configPath))
}

// GetLastReloadTime 获取最后重载时间
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload
}
