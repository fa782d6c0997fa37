package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. It replaces the teacher's
// scattered package-level singleton accessors with one explicit typed
// record threaded through the constructors that need it (spec §9 redesign
// note: "replace singleton config accessors with an explicit config record").
type Config struct {
	Port        string
	Environment string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	PriceFeed PriceFeedConfig
	Margin    MarginConfig
	Leverage  LeverageConfig
	Position  PositionConfig
	Challenge ChallengeConfig
	CORS      CORSConfig
	Platform  PlatformConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type JWTConfig struct {
	Secret string
	Expiry string
}

// PriceFeedConfig governs the Price Oracle's fetcher selection (spec §4.6).
type PriceFeedConfig struct {
	Mode                string // "websocket", "api" or "both"; buildOracle wires the REST fetcher for every value
	PrimarySource       string
	BaseURL             string
	APIKey              string
	UpdateIntervalMs    int
	CacheTTLSeconds     int
	ClientPollIntervalMs int
}

// MarginConfig holds the admin-global margin-status thresholds, which
// cmd/contestcore-server turns into the pnlmath.Thresholds of
// internal/positionengine's margin-call scan. No contest setting
// overrides them.
type MarginConfig struct {
	LiquidationLevelPercent float64
	MarginCallLevelPercent  float64
	WarningLevelPercent     float64
	SafeLevelPercent        float64
}

type LeverageConfig struct {
	Min     int
	Max     int
	Default int
}

type PositionConfig struct {
	MinQuantity float64
	MaxQuantity float64
}

// ChallengeConfig is the settings singleton named in spec.md's
// configuration list but never given a concrete shape there
// (spec §9 Open Question 2) — see internal/lifecycle.ChallengeSettings
// for how it's consumed.
type ChallengeConfig struct {
	MaxPendingPerUser    int
	MaxActivePerUser     int
	CooldownMinutes      int
	AcceptDeadlineMinutes int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// PlatformConfig holds the display settings for notification copy
// (internal/i18n): a single ISO 4217 currency every contest and wallet
// is denominated in, and the BCP 47 locale used to format it.
type PlatformConfig struct {
	Currency string
	Locale   string
}

// Load loads configuration from environment variables, falling back to a
// .env file in the working directory if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "7999"),
		Environment: getEnv("ENVIRONMENT", "development"),

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "contestcore"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: getEnv("JWT_EXPIRY", "24h"),
		},

		PriceFeed: PriceFeedConfig{
			Mode:                 getEnv("PRICE_FEED_MODE", "websocket"),
			PrimarySource:        getEnv("PRICE_FEED_PRIMARY_SOURCE", "oanda"),
			BaseURL:              getEnv("PRICE_FEED_BASE_URL", ""),
			APIKey:               getEnv("PRICE_FEED_API_KEY", ""),
			UpdateIntervalMs:     getEnvAsInt("PRICE_FEED_UPDATE_INTERVAL_MS", 500),
			CacheTTLSeconds:      getEnvAsInt("PRICE_FEED_CACHE_TTL_SECONDS", 5),
			ClientPollIntervalMs: getEnvAsInt("PRICE_FEED_CLIENT_POLL_INTERVAL_MS", 1000),
		},

		Margin: MarginConfig{
			LiquidationLevelPercent: getEnvAsFloat("MARGIN_LIQUIDATION_LEVEL_PERCENT", 20.0),
			MarginCallLevelPercent:  getEnvAsFloat("MARGIN_CALL_LEVEL_PERCENT", 50.0),
			WarningLevelPercent:     getEnvAsFloat("MARGIN_WARNING_LEVEL_PERCENT", 100.0),
			SafeLevelPercent:        getEnvAsFloat("MARGIN_SAFE_LEVEL_PERCENT", 200.0),
		},

		Leverage: LeverageConfig{
			Min:     getEnvAsInt("LEVERAGE_MIN", 1),
			Max:     getEnvAsInt("LEVERAGE_MAX", 500),
			Default: getEnvAsInt("LEVERAGE_DEFAULT", 100),
		},

		Position: PositionConfig{
			MinQuantity: getEnvAsFloat("POSITION_MIN_QUANTITY", 0.01),
			MaxQuantity: getEnvAsFloat("POSITION_MAX_QUANTITY", 100.0),
		},

		Challenge: ChallengeConfig{
			MaxPendingPerUser:     getEnvAsInt("CHALLENGE_MAX_PENDING_PER_USER", 3),
			MaxActivePerUser:      getEnvAsInt("CHALLENGE_MAX_ACTIVE_PER_USER", 5),
			CooldownMinutes:       getEnvAsInt("CHALLENGE_COOLDOWN_MINUTES", 10),
			AcceptDeadlineMinutes: getEnvAsInt("CHALLENGE_ACCEPT_DEADLINE_MINUTES", 1440),
		},

		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}, ","),
		},

		Platform: PlatformConfig{
			Currency: getEnv("PLATFORM_CURRENCY", "USD"),
			Locale:   getEnv("PLATFORM_LOCALE", "en-US"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.Environment == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Leverage.Min > c.Leverage.Max {
		return fmt.Errorf("LEVERAGE_MIN must not exceed LEVERAGE_MAX")
	}
	if c.Leverage.Default < c.Leverage.Min || c.Leverage.Default > c.Leverage.Max {
		return fmt.Errorf("LEVERAGE_DEFAULT must fall within [LEVERAGE_MIN, LEVERAGE_MAX]")
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	return strings.Split(valueStr, sep)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}
