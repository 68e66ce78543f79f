package alert

import (
	"fmt"

	"go.uber.org/zap"

	"lattice-pricer-go/infrastructure/logger"
)

// LogChannel 通过结构化日志器输出告警
type LogChannel struct {
	logger *logger.Logger
	name   string
}

// NewLogChannel 创建日志告警通道，log为nil时静默丢弃
func NewLogChannel(name string, log *logger.Logger) *LogChannel {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogChannel{
		logger: log,
		name:   name,
	}
}

// Send 按告警级别写入对应日志级别
func (c *LogChannel) Send(alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+2)
	fields = append(fields,
		zap.String("alert_level", alert.Level),
		zap.Time("alert_ts", alert.Timestamp),
	)
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch alert.Level {
	case "ERROR":
		c.logger.Error(alert.Message, fields...)
	case "WARNING":
		c.logger.Warn(alert.Message, fields...)
	default:
		c.logger.Info(alert.Message, fields...)
	}
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string {
	return c.name
}

// MockChannel 模拟告警通道（用于测试）
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建模拟告警通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{
		name:   name,
		alerts: make([]Alert, 0),
	}
}

// Send 记录告警（用于测试验证）
func (c *MockChannel) Send(alert Alert) error {
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string {
	return c.name
}

// GetAlerts 获取所有接收到的告警
func (c *MockChannel) GetAlerts() []Alert {
	return c.alerts
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.shouldErr = shouldErr
}

// Clear 清空告警记录
func (c *MockChannel) Clear() {
	c.alerts = make([]Alert, 0)
}

// Count 返回接收到的告警数量
func (c *MockChannel) Count() int {
	return len(c.alerts)
}
