package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lattice-pricer-go/infrastructure/logger"
	"lattice-pricer-go/lattice"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env      string         `yaml:"env"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Pricer   PricerConfig   `yaml:"pricer"`
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
}

// ScenarioConfig 描述一组定价输入（利率/波动率为百分数，与CLI口径一致）。
type ScenarioConfig struct {
	Name          string  `yaml:"name"`
	Spot          float64 `yaml:"spot"`
	Strike        float64 `yaml:"strike"`
	RatePct       float64 `yaml:"ratePct"`
	SigmaPct      float64 `yaml:"sigmaPct"`
	MaturityYears float64 `yaml:"maturityYears"`
	Steps         int     `yaml:"steps"`
	Payoff        string  `yaml:"payoff"`
}

type PricerConfig struct {
	Workers      int `yaml:"workers"`      // 单行回推的并行度，0表示 GOMAXPROCS
	HistoryLimit int `yaml:"historyLimit"` // 结果历史保留条数
	QueueSize    int `yaml:"queueSize"`    // 重定价队列长度
}

type ServerConfig struct {
	ListenAddr       string `yaml:"listenAddr"`
	MetricsAddr      string `yaml:"metricsAddr"` // 为空则不启动指标端口
	RequestTimeoutMs int    `yaml:"requestTimeoutMs"`
	MaxSteps         int    `yaml:"maxSteps"` // 单请求允许的最大步数，0表示不限制
}

// Parameters converts the scenario into pricing parameters. Numeric
// range checks are delegated to the pricing layer so config and API
// requests reject inputs with identical messages.
func (sc ScenarioConfig) Parameters() (lattice.Parameters, error) {
	kind, err := lattice.ParseKind(sc.Payoff)
	if err != nil {
		return lattice.Parameters{}, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	p := lattice.Parameters{
		Spot:          sc.Spot,
		Strike:        sc.Strike,
		RiskFreePct:   sc.RatePct,
		SigmaPct:      sc.SigmaPct,
		MaturityYears: sc.MaturityYears,
		Steps:         sc.Steps,
		Payoff:        kind,
	}
	if err := p.Validate(); err != nil {
		return lattice.Parameters{}, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return p, nil
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deploy-specific fields
// from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("LATTICE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LATTICE_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("LATTICE_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	return cfg, Validate(cfg)
}
