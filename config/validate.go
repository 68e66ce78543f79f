package config

import "fmt"

// ErrInvalid 用于配置验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present and the configured
// scenario is priceable.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if _, err := cfg.Scenario.Parameters(); err != nil {
		return err
	}
	if cfg.Pricer.Workers < 0 {
		return fmt.Errorf("pricer.workers must be >= 0, got %d", cfg.Pricer.Workers)
	}
	if cfg.Pricer.HistoryLimit < 0 {
		return fmt.Errorf("pricer.historyLimit must be >= 0, got %d", cfg.Pricer.HistoryLimit)
	}
	if cfg.Pricer.QueueSize < 0 {
		return fmt.Errorf("pricer.queueSize must be >= 0, got %d", cfg.Pricer.QueueSize)
	}
	if cfg.Server.ListenAddr == "" {
		return ErrInvalid("server.listenAddr is required")
	}
	if cfg.Server.RequestTimeoutMs < 0 {
		return fmt.Errorf("server.requestTimeoutMs must be >= 0, got %d", cfg.Server.RequestTimeoutMs)
	}
	if cfg.Server.MaxSteps < 0 {
		return fmt.Errorf("server.maxSteps must be >= 0, got %d", cfg.Server.MaxSteps)
	}
	return nil
}
