package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server deployment settings. The batch CLI does not use
// it; its surface is the two positionals and three flags.
type Config struct {
	Feed struct {
		InputPath string `yaml:"input_path"`
		Crossing  *bool  `yaml:"crossing"` // nil = detect from filename
	} `yaml:"feed"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	Journal struct {
		Dir string `yaml:"dir"`
	} `yaml:"journal"`

	API struct {
		GRPCAddr string `yaml:"grpc_addr"`
		WSAddr   string `yaml:"ws_addr"`
	} `yaml:"api"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates a YAML config file. Environment variables
// override broker and topic settings so deployments can keep secrets out of
// the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	overrideWithEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Feed.InputPath == "" {
		return fmt.Errorf("feed input path is required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	if len(c.Kafka.Brokers) > 0 && c.Journal.Dir == "" {
		return fmt.Errorf("journal dir is required when brokers are set")
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("MBO_KAFKA_BROKER"); v != "" {
		cfg.Kafka.Brokers = []string{v}
	}
	if v := os.Getenv("MBO_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("MBO_JOURNAL_DIR"); v != "" {
		cfg.Journal.Dir = v
	}
}
