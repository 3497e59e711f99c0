package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Sync     SyncConfig     `yaml:"sync"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
}

// ServerConfig points at the REST order service.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	APIKeyHeader   string `yaml:"api_key_header"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type SyncConfig struct {
	LocationID            string `yaml:"location_id"`
	CancelledGraceSeconds int    `yaml:"cancelled_grace_seconds"`
}

type KitchenConfig struct {
	RushThresholdMinutes   int `yaml:"rush_threshold_minutes"`
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			APIKeyHeader:   "X-API-Key",
			TimeoutSeconds: 15,
		},
		RabbitMQ: RabbitMQConfig{
			Port:  5672,
			VHost: "/",
		},
		Sync: SyncConfig{
			CancelledGraceSeconds: 3,
		},
		Kitchen: KitchenConfig{
			RushThresholdMinutes:   15,
			RefreshIntervalSeconds: 60,
		},
	}
}

func (c *Config) validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("invalid config: server.base_url is required")
	}
	if c.RabbitMQ.Host == "" {
		return errors.New("invalid config: rabbitmq.host is required")
	}
	if c.Sync.CancelledGraceSeconds < 0 {
		return errors.New("invalid config: sync.cancelled_grace_seconds must not be negative")
	}
	if c.Kitchen.RushThresholdMinutes <= 0 {
		return errors.New("invalid config: kitchen.rush_threshold_minutes must be positive")
	}
	return nil
}
