package validatevaluationform

import (
	"fmt"
	"time"

	"github.com/amcolab/sell-bot/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appCfg *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}
	if appCfg.Camunda.MaxJobsActive > 0 {
		cfg.MaxJobsActive = appCfg.Camunda.MaxJobsActive
	}
	if d := appCfg.Camunda.TimeoutDuration(); d > 0 {
		cfg.Timeout = d
	}
	return cfg
}
