package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName       string
	AppEnv        string
	AppPort       string
	DatabaseURL   string
	RedisURL      string
	NATSURL       string
	EventsChannel string
	JWTSecret     string

	AIProvider      string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AITimeout       time.Duration
	AIConcurrency   int
	AIRateLimit     int
	AIRateWindow    time.Duration
	AIMaxTokens     int
	AITemperature   float32
	StatsTTL        time.Duration
	LowConfidence   float64
	ShutdownTimeout time.Duration
	SeedEnabled     bool
	SeedToken       string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AIEnabled reports whether an external scorer should be constructed.
func (c Config) AIEnabled() bool {
	return c.AIProvider == "openai" && c.OpenAIAPIKey != ""
}

// Load reads configuration values from GRADING_* environment variables and an
// optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Grading API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("events.channel", "gema")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("ai.timeout", "20s")
	v.SetDefault("ai.concurrency", 4)
	v.SetDefault("ai.rate_limit", 30)
	v.SetDefault("ai.rate_window", "1m")
	v.SetDefault("ai.max_tokens", 400)
	v.SetDefault("ai.temperature", 0.0)
	v.SetDefault("grading.stats_ttl", "2m")
	v.SetDefault("grading.low_confidence_threshold", 0.6)
	v.SetDefault("app.shutdown_timeout", "10s")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("seed.token", "")

	aiTimeout, err := parseDuration(v, "ai.timeout")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "ai.rate_window")
	if err != nil {
		return Config{}, err
	}
	statsTTL, err := parseDuration(v, "grading.stats_ttl")
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := parseDuration(v, "app.shutdown_timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		EventsChannel:   v.GetString("events.channel"),
		JWTSecret:       v.GetString("jwt.secret"),
		AIProvider:      strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey:    v.GetString("openai.api_key"),
		OpenAIModel:     v.GetString("openai.model"),
		OpenAIBaseURL:   v.GetString("openai.base_url"),
		AITimeout:       aiTimeout,
		AIConcurrency:   v.GetInt("ai.concurrency"),
		AIRateLimit:     v.GetInt("ai.rate_limit"),
		AIRateWindow:    rateWindow,
		AIMaxTokens:     v.GetInt("ai.max_tokens"),
		AITemperature:   float32(v.GetFloat64("ai.temperature")),
		StatsTTL:        statsTTL,
		LowConfidence:   v.GetFloat64("grading.low_confidence_threshold"),
		ShutdownTimeout: shutdownTimeout,
		SeedEnabled:     v.GetBool("seed.enabled"),
		SeedToken:       v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.LowConfidence <= 0 || cfg.LowConfidence > 1 {
		return Config{}, fmt.Errorf("grading low confidence threshold must be within (0, 1], got %g", cfg.LowConfidence)
	}
	if cfg.AIConcurrency <= 0 {
		cfg.AIConcurrency = 4
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
