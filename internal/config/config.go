// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env-default:"prod"`
	Plant     PlantRef        `yaml:"plant"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Run       RunConfig       `yaml:"run"`
	Publisher PublisherConfig `yaml:"publisher"`
	History   HistoryConfig   `yaml:"history"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log"`
}

// PlantRef names the installation under test and points at its checkout and
// device definition files.
type PlantRef struct {
	Name         string `yaml:"name" env-required:"true"`
	CheckoutPath string `yaml:"checkout_path" env-required:"true"`
	DevicesPath  string `yaml:"devices_path"`
}

type GatewayConfig struct {
	URL     string        `yaml:"url" env-required:"true"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type RunConfig struct {
	// Interval between runs in watch mode.
	Interval time.Duration `yaml:"interval" env-default:"5m"`
	// Timeout caps one whole run.
	Timeout time.Duration `yaml:"timeout" env-default:"2m"`
	// Sequential disables the concurrent fan-out, for rate-limited
	// gateways.
	Sequential bool `yaml:"sequential" env-default:"false"`
}

type PublisherConfig struct {
	Enabled bool          `yaml:"enabled" env-default:"true"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token" env:"PUBLISHER_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"1s"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"60s"`
}

type HistoryConfig struct {
	Enabled bool          `yaml:"enabled" env-default:"true"`
	Path    string        `yaml:"path" env-default:"/var/lib/checkout/history.db"`
	MaxAge  time.Duration `yaml:"max_age" env-default:"168h"`
}

type HealthConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
