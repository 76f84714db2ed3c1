package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/blueetlcore/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl file or directory
	EnginePath   string // optional yaml file

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// Jobs overrides the configured job count when not nil. 0 means auto.
	Jobs *int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := config.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.Jobs != nil && *cfg.Jobs < -1 {
		return nil, fmt.Errorf("invalid job count %d: use -1, 0 (auto) or a positive number", *cfg.Jobs)
	}
	if cfg.HealthcheckPort < 0 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
