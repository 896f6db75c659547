// Package config loads server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TASKMIND_"

type Config struct {
	Server ServerConfig `koanf:"server"`
	DB     DBConfig     `koanf:"db"`
	LLM    LLMConfig    `koanf:"llm"`
	NATS   NATSConfig   `koanf:"nats"`
	Auth   AuthConfig   `koanf:"auth"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type DBConfig struct {
	Path string `koanf:"path"`
}

type LLMConfig struct {
	BaseURL    string        `koanf:"base_url"`
	Model      string        `koanf:"model"`
	Token      string        `koanf:"token"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

type NATSConfig struct {
	// URL empty means event publishing is disabled.
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type AuthConfig struct {
	// Tokens maps bearer tokens to user ids.
	Tokens map[string]string `koanf:"tokens"`
}

var defaults = []byte(`
server:
  addr: ":8100"
db:
  path: "taskmind.db"
llm:
  base_url: "http://localhost:11434/v1/"
  model: "llama3.1:8b"
  timeout: 30s
  max_retries: 3
nats:
  subject: "tasks"
`)

// Load reads defaults, then the YAML file at path (if it exists), then
// TASKMIND_* environment variables. Double underscore separates nesting:
// TASKMIND_LLM__BASE_URL maps to llm.base_url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.LLM.MaxRetries <= 0 {
		cfg.LLM.MaxRetries = 3
	}
	return &cfg, nil
}
