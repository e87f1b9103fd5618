package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for riddle-engine
type Config struct {
	Server   ServerConfig
	Platform PlatformConfig
	Bot      BotConfig
	Cache    CacheConfig
	Repair   RepairConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// PlatformConfig holds chat platform connection configuration
type PlatformConfig struct {
	APIBaseURL string
	GatewayURL string
	Token      string
	GuildID    string
}

// BotConfig holds command and conversation configuration
type BotConfig struct {
	Prefix            string
	NotifyRoleID      string
	SettingsChannelID string
	TextsPath         string
	WaitTimeout       time.Duration
	SolveDelay        time.Duration
}

// CacheConfig holds directory snapshot cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RepairConfig holds repair sweep configuration
type RepairConfig struct {
	Interval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Platform: PlatformConfig{
			APIBaseURL: getEnv("PLATFORM_API_URL", "http://localhost:9090"),
			GatewayURL: getEnv("PLATFORM_GATEWAY_URL", "ws://localhost:9090/gateway"),
			Token:      getEnv("PLATFORM_TOKEN", ""),
			GuildID:    getEnv("PLATFORM_GUILD_ID", ""),
		},
		Bot: BotConfig{
			Prefix:            getEnv("BOT_PREFIX", "$"),
			NotifyRoleID:      getEnv("BOT_NOTIFY_ROLE_ID", ""),
			SettingsChannelID: getEnv("BOT_SETTINGS_CHANNEL_ID", ""),
			TextsPath:         getEnv("BOT_TEXTS_PATH", ""),
			WaitTimeout:       getEnvAsDuration("BOT_WAIT_TIMEOUT", 5*time.Minute),
			SolveDelay:        getEnvAsDuration("BOT_SOLVE_DELAY", 2*time.Second),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 30*time.Second),
		},
		Repair: RepairConfig{
			Interval: getEnvAsDuration("REPAIR_INTERVAL", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Platform.Token == "" {
		return fmt.Errorf("platform token is required")
	}

	if c.Platform.GuildID == "" {
		return fmt.Errorf("platform guild id is required")
	}

	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return fmt.Errorf("bot prefix must not be blank")
	}

	if c.Bot.WaitTimeout <= 0 {
		return fmt.Errorf("invalid wait timeout: %s", c.Bot.WaitTimeout)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
