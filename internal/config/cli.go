package config

import "strings"

// CLIConfig holds defaults for bingoctl, overridable by flags.
type CLIConfig struct {
	CDPAddress   string
	CDPPort      int
	TabURLFilter string
	LogLevel     string
	MaxEdge      int
	Quality      int
}

// LoadCLI reads bingoctl defaults from environment variables and .env.
func LoadCLI() *CLIConfig {
	_ = loadDotEnv()
	return &CLIConfig{
		CDPAddress:   getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:      getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter: getEnvOrDefault("BINGO_TAB_URL_FILTER", "bing.com"),
		LogLevel:     strings.ToLower(getEnvOrDefault("BINGO_LOG_LEVEL", "warn")),
		MaxEdge:      getEnvIntOrDefault("BINGO_COMPRESS_MAX_EDGE", 1536),
		Quality:      getEnvIntOrDefault("BINGO_COMPRESS_QUALITY", 80),
	}
}
