package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StoreFile is the optional YAML file describing the credential store.
//
//	driver: redis
//	limit: 4000
//	redis:
//	  addr: 10.0.0.5:6379
//	  db: 2
type StoreFile struct {
	Driver string `yaml:"driver"`
	Limit  int    `yaml:"limit,omitempty"`
	Redis  struct {
		Addr     string `yaml:"addr,omitempty"`
		Password string `yaml:"password,omitempty"`
		DB       int    `yaml:"db,omitempty"`
		Prefix   string `yaml:"prefix,omitempty"`
	} `yaml:"redis,omitempty"`
}

// LoadStoreFile reads and validates a store YAML file.
func LoadStoreFile(path string) (*StoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	var sf StoreFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	sf.Driver = strings.ToLower(strings.TrimSpace(sf.Driver))
	if sf.Driver == "" {
		return nil, fmt.Errorf("store config: missing driver")
	}
	if sf.Driver == "redis" && sf.Redis.Addr == "" {
		return nil, fmt.Errorf("store config: redis driver requires redis.addr")
	}
	if sf.Limit < 0 {
		return nil, fmt.Errorf("store config: limit must not be negative")
	}
	return &sf, nil
}

// Apply overrides cfg with the values set in the file.
func (sf *StoreFile) Apply(cfg *Config) {
	cfg.StoreDriver = sf.Driver
	if sf.Limit > 0 {
		cfg.StoreLimit = sf.Limit
	}
	if sf.Redis.Addr != "" {
		cfg.RedisAddr = sf.Redis.Addr
	}
	if sf.Redis.Password != "" {
		cfg.RedisPassword = sf.Redis.Password
	}
	if sf.Redis.DB != 0 {
		cfg.RedisDB = sf.Redis.DB
	}
	if sf.Redis.Prefix != "" {
		cfg.RedisPrefix = sf.Redis.Prefix
	}
}
