// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/polyinsider/pulse/internal/particle"
	"github.com/polyinsider/pulse/internal/store"
)

// Config holds all configuration values for pulse.
type Config struct {
	// Market data API
	APIURL             string
	APIKey             string
	MarketPollInterval time.Duration
	MarketLimit        int
	MarketCategory     string
	MinVolumeUSD       float64
	MinLiquidityUSD    float64
	CacheTTL           time.Duration

	// Realtime feed
	RealtimeURL string

	// Breaking feed and detection thresholds
	BreakingMinChange float64
	BreakingTimeRange string
	BurstCount        int
	BurstWindow       time.Duration

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Effects
	EffectsEnabled   bool
	MaxParticles     int
	// ParticleGravity and ParticleFriction override every preset's physics
	// when set.
	ParticleGravity  *float64
	ParticleFriction *float64
	EffectsFPS       int
	PresetsFile      string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Market data
		APIURL:             getEnv("PULSE_API_URL", "https://api.pulse.markets/v1"),
		APIKey:             getEnv("PULSE_API_KEY", ""),
		MarketPollInterval: time.Duration(getEnvInt("MARKET_POLL_SECONDS", 30)) * time.Second,
		MarketLimit:        getEnvInt("MARKET_LIMIT", store.DefaultMarketLimit),
		MarketCategory:     getEnv("MARKET_CATEGORY", ""),
		MinVolumeUSD:       getEnvFloat("MIN_VOLUME_USD", 0),
		MinLiquidityUSD:    getEnvFloat("MIN_LIQUIDITY_USD", 0),
		CacheTTL:           time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,

		// Realtime
		RealtimeURL: getEnv("PULSE_REALTIME_URL", "wss://realtime.pulse.markets/v1/changes"),

		// Thresholds
		BreakingMinChange: getEnvFloat("BREAKING_MIN_CHANGE", 5),
		BreakingTimeRange: getEnv("BREAKING_TIME_RANGE", store.Range24h),
		BurstCount:        getEnvInt("BURST_COUNT", 3),
		BurstWindow:       time.Duration(getEnvInt("BURST_WINDOW_SECONDS", 60)) * time.Second,

		// UI
		EnableTUI:     getEnvBool("ENABLE_TUI", true),
		UIRefreshRate: time.Duration(getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		// Effects
		EffectsEnabled:   getEnvBool("EFFECTS_ENABLED", true),
		MaxParticles:     getEnvInt("MAX_PARTICLES", particle.DefaultMaxParticles),
		ParticleGravity:  getEnvFloatPtr("PARTICLE_GRAVITY"),
		ParticleFriction: getEnvFloatPtr("PARTICLE_FRICTION"),
		EffectsFPS:       getEnvInt("EFFECTS_FPS", particle.DefaultFrameRate),
		PresetsFile:      getEnv("PRESETS_FILE", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogFile:  getEnv("LOG_FILE", "./pulse.log"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("PULSE_API_URL is required")
	}

	if c.MarketPollInterval <= 0 {
		return fmt.Errorf("MARKET_POLL_SECONDS must be positive")
	}

	if c.MarketLimit < 1 || c.MarketLimit > store.MaxMarketLimit {
		return fmt.Errorf("MARKET_LIMIT must be between 1 and %d", store.MaxMarketLimit)
	}

	if c.MinVolumeUSD < 0 || c.MinLiquidityUSD < 0 {
		return fmt.Errorf("MIN_VOLUME_USD and MIN_LIQUIDITY_USD must not be negative")
	}

	if c.BreakingMinChange < 0 {
		return fmt.Errorf("BREAKING_MIN_CHANGE must not be negative")
	}

	if _, err := store.TimeRange(c.BreakingTimeRange); err != nil {
		return fmt.Errorf("BREAKING_TIME_RANGE: %w", err)
	}

	if c.BurstCount < 1 {
		return fmt.Errorf("BURST_COUNT must be at least 1")
	}

	if c.MaxParticles < 0 {
		return fmt.Errorf("MAX_PARTICLES must not be negative")
	}

	if f := c.ParticleFriction; f != nil && (*f <= 0 || *f > 1) {
		return fmt.Errorf("PARTICLE_FRICTION must be above 0 and at most 1")
	}

	if c.EffectsFPS < 1 || c.EffectsFPS > 240 {
		return fmt.Errorf("EFFECTS_FPS must be between 1 and 240")
	}

	return nil
}

// MarketQuery returns the configured market query.
func (c *Config) MarketQuery() store.MarketQuery {
	return store.MarketQuery{
		Category:     c.MarketCategory,
		Active:       true,
		MinVolume:    c.MinVolumeUSD,
		MinLiquidity: c.MinLiquidityUSD,
		Limit:        c.MarketLimit,
	}
}

// BreakingQuery returns the configured breaking-feed query.
func (c *Config) BreakingQuery() store.BreakingQuery {
	return store.BreakingQuery{
		MinChange: c.BreakingMinChange,
		TimeRange: c.BreakingTimeRange,
		Trend:     store.TrendAny,
	}
}

// ParticleConfig returns the effects engine configuration.
func (c *Config) ParticleConfig() particle.Config {
	pc := particle.Config{
		MaxParticles: c.MaxParticles,
		Gravity:      particle.DefaultGravity,
		Friction:     particle.DefaultFriction,
		Enabled:      c.EffectsEnabled,
		FrameRate:    c.EffectsFPS,
	}
	if c.ParticleGravity != nil {
		pc.Gravity = *c.ParticleGravity
	}
	if c.ParticleFriction != nil {
		pc.Friction = *c.ParticleFriction
	}
	return pc
}

// Presets returns the built-in presets, merged with PresetsFile when set, with
// the configured physics applied to every preset.
func (c *Config) Presets() (particle.Presets, error) {
	presets, err := particle.LoadPresets(c.PresetsFile)
	if err != nil {
		return nil, err
	}
	return presets.ApplyAll(particle.Overrides{
		Gravity:  c.ParticleGravity,
		Friction: c.ParticleFriction,
	}), nil
}

// MaskedAPIKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedAPIKey() string {
	return maskSecret(c.APIKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvFloatPtr retrieves an environment variable as a float64, or nil when
// it is unset or unparsable.
func getEnvFloatPtr(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return &floatVal
		}
	}
	return nil
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
