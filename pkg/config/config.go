// Package config loads tool configuration from environment variables, with
// an optional YAML file for setups that outgrow the environment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the gef CLI commands.
type Config struct {
	LedgerPath string `yaml:"ledger_path"`
	KeyFile    string `yaml:"key_file"`
	AgentID    string `yaml:"agent_id"`
	PolicyKey  string `yaml:"policy_key"`
	LogLevel   string `yaml:"log_level"`
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		LedgerPath: os.Getenv("GEF_LEDGER"),
		KeyFile:    os.Getenv("GEF_KEY_FILE"),
		AgentID:    os.Getenv("GEF_AGENT_ID"),
		PolicyKey:  os.Getenv("GEF_POLICY_KEY"),
		LogLevel:   os.Getenv("GEF_LOG_LEVEL"),
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML config file and overlays environment variables on
// top: the environment always wins, so one-off overrides need no file edit.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if v := os.Getenv("GEF_LEDGER"); v != "" {
		cfg.LedgerPath = v
	}
	if v := os.Getenv("GEF_KEY_FILE"); v != "" {
		cfg.KeyFile = v
	}
	if v := os.Getenv("GEF_AGENT_ID"); v != "" {
		cfg.AgentID = v
	}
	if v := os.Getenv("GEF_POLICY_KEY"); v != "" {
		cfg.PolicyKey = v
	}
	if v := os.Getenv("GEF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LedgerPath == "" {
		c.LedgerPath = ".guardclaw/ledger.jsonl"
	}
	if c.KeyFile == "" {
		c.KeyFile = ".guardclaw/agent.key"
	}
	if c.AgentID == "" {
		c.AgentID = "agent-default"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
}
