package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bridge service.
type Config struct {
	// HTTP server
	BindAddr      string
	BindFallbacks []string
	AutoFallback  bool

	// Logging
	LogLevel string
	LogFile  string

	// Credential store
	StoreDriver   string
	StoreLimit    int
	StoreFile     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Image intake
	DataDir           string
	CameraDriver      string
	CameraOpenTimeout time.Duration
	CompressMaxBytes  int64
	CompressMaxEdge   int
	CompressQuality   int
	CaptureQuality    int
	PanelIdleTTL      time.Duration
	PanelSweep        time.Duration
	ImageRetention    time.Duration
	AuditMaxSizeMB    int

	// CDP, used by the tab camera driver
	CDPAddress string
	CDPPort    int

	ReloadDelay time.Duration
}

// Load reads configuration from environment variables, an optional .env
// file and, when BINGO_STORE_FILE is set, a YAML store file.
func Load() (*Config, error) {
	_ = loadDotEnv()

	cfg := &Config{
		BindAddr:          getEnvOrDefault("BINGO_BIND_ADDR", "127.0.0.1:3000"),
		BindFallbacks:     getEnvListOrDefault("BINGO_BIND_FALLBACKS", []string{"127.0.0.1:3001", "127.0.0.1:3002"}),
		AutoFallback:      getEnvBoolOrDefault("BINGO_BIND_AUTO_FALLBACK", true),
		LogLevel:          strings.ToLower(getEnvOrDefault("BINGO_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("BINGO_LOG_FILE", "logs/bridge.log"),
		StoreDriver:       strings.ToLower(getEnvOrDefault("BINGO_STORE_DRIVER", "cookie")),
		StoreLimit:        getEnvIntOrDefault("BINGO_STORE_LIMIT", 0),
		StoreFile:         getEnvOrDefault("BINGO_STORE_FILE", ""),
		RedisAddr:         getEnvOrDefault("BINGO_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     getEnvOrDefault("BINGO_REDIS_PASSWORD", ""),
		RedisDB:           getEnvIntOrDefault("BINGO_REDIS_DB", 0),
		RedisPrefix:       getEnvOrDefault("BINGO_REDIS_PREFIX", "bingo:credential:"),
		DataDir:           getEnvOrDefault("BINGO_DATA_DIR", "./bingo_data"),
		CameraDriver:      strings.ToLower(getEnvOrDefault("BINGO_CAMERA_DRIVER", "feed")),
		CameraOpenTimeout: getEnvDurationMSOrDefault("BINGO_CAMERA_OPEN_TIMEOUT_MS", 10*time.Second),
		CompressMaxBytes:  int64(getEnvIntOrDefault("BINGO_COMPRESS_MAX_BYTES", 20<<20)),
		CompressMaxEdge:   getEnvIntOrDefault("BINGO_COMPRESS_MAX_EDGE", 1536),
		CompressQuality:   getEnvIntOrDefault("BINGO_COMPRESS_QUALITY", 80),
		CaptureQuality:    getEnvIntOrDefault("BINGO_CAPTURE_QUALITY", 92),
		PanelIdleTTL:      getEnvDurationMSOrDefault("BINGO_PANEL_IDLE_TTL_MS", 30*time.Minute),
		PanelSweep:        getEnvDurationMSOrDefault("BINGO_PANEL_SWEEP_MS", time.Minute),
		ImageRetention:    getEnvDurationMSOrDefault("BINGO_IMAGE_RETENTION_MS", 24*time.Hour),
		AuditMaxSizeMB:    getEnvIntOrDefault("BINGO_AUDIT_MAX_SIZE_MB", 50),
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		ReloadDelay:       getEnvDurationMSOrDefault("BINGO_RELOAD_DELAY_MS", 2*time.Second),
	}

	if cfg.StoreFile != "" {
		sf, err := LoadStoreFile(cfg.StoreFile)
		if err != nil {
			return nil, err
		}
		sf.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "cookie", "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported store driver %q", c.StoreDriver)
	}
	switch c.CameraDriver {
	case "feed", "tab", "none":
	default:
		return fmt.Errorf("config: unsupported camera driver %q", c.CameraDriver)
	}
	if c.CompressQuality < 1 || c.CompressQuality > 100 {
		return fmt.Errorf("config: compress quality %d out of range 1-100", c.CompressQuality)
	}
	if c.CaptureQuality < 1 || c.CaptureQuality > 100 {
		return fmt.Errorf("config: capture quality %d out of range 1-100", c.CaptureQuality)
	}
	if c.StoreLimit < 0 {
		return fmt.Errorf("config: store limit must not be negative")
	}
	return nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	return err
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationMSOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
