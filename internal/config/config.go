// Package config loads toolbrief configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Completion providers supported by the generation engine.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ModelRef names one completion model in the fallback priority list.
type ModelRef struct {
	Provider string
	Model    string
}

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port          string
	PublicBaseURL string
	AdminSecret   string

	// Completion models, in fallback priority order
	Models          []ModelRef
	ValidatorModel  ModelRef
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Generation
	GenerationTimeout time.Duration
	ValidatorTimeout  time.Duration
	MaxAttempts       int
	MaxOutputTokens   int
	PricingFile       string
	SearchCostDivisor int

	// Job queue
	StuckThreshold    time.Duration
	RateLimitJobs     int
	RateLimitWindow   time.Duration
	MaxJobsPerSession int
	ProcessorInterval time.Duration

	// Cache freshness
	FreshWindow      time.Duration
	QuickFreshWindow time.Duration

	// Object storage (Google Cloud Storage)
	GCSBucket   string
	GCSProject  string
	GCSCredFile string

	// Optional SurrealDB job persistence
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Port:          getEnv("TOOLBRIEF_PORT", "8486"),
		PublicBaseURL: getEnv("TOOLBRIEF_BASE_URL", "http://localhost:8486"),
		AdminSecret:   getEnv("TOOLBRIEF_ADMIN_SECRET", ""),

		Models:          parseModels(getEnv("TOOLBRIEF_MODELS", "openai:gpt-4o")),
		ValidatorModel:  parseModel(getEnv("TOOLBRIEF_VALIDATOR_MODEL", "openai:gpt-4o-mini")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		GenerationTimeout: getDuration("TOOLBRIEF_GENERATION_TIMEOUT", 180*time.Second),
		ValidatorTimeout:  getDuration("TOOLBRIEF_VALIDATOR_TIMEOUT", 15*time.Second),
		MaxAttempts:       getInt("TOOLBRIEF_MAX_ATTEMPTS", 2),
		MaxOutputTokens:   getInt("TOOLBRIEF_MAX_OUTPUT_TOKENS", 16384),
		PricingFile:       getEnv("TOOLBRIEF_PRICING_FILE", ""),
		SearchCostDivisor: getInt("TOOLBRIEF_SEARCH_COST_DIVISOR", 3),

		StuckThreshold:    getDuration("TOOLBRIEF_STUCK_THRESHOLD", 5*time.Minute),
		RateLimitJobs:     getInt("TOOLBRIEF_RATE_LIMIT_JOBS", 5),
		RateLimitWindow:   getDuration("TOOLBRIEF_RATE_LIMIT_WINDOW", time.Minute),
		MaxJobsPerSession: getInt("TOOLBRIEF_MAX_JOBS_PER_SESSION", 100),
		ProcessorInterval: getDuration("TOOLBRIEF_PROCESSOR_INTERVAL", 30*time.Second),

		FreshWindow:      getDuration("TOOLBRIEF_FRESH_WINDOW", 30*24*time.Hour),
		QuickFreshWindow: getDuration("TOOLBRIEF_QUICK_FRESH_WINDOW", 24*time.Hour),

		GCSBucket:   getEnv("TOOLBRIEF_GCS_BUCKET", ""),
		GCSProject:  getEnv("TOOLBRIEF_GCS_PROJECT", ""),
		GCSCredFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "toolbrief"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "jobs"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("TOOLBRIEF_LOG_FILE", "/tmp/toolbrief.log"),
		LogLevel: parseLogLevel(getEnv("TOOLBRIEF_LOG_LEVEL", "INFO")),
	}
}

// ListenAddr is the address the HTTP server binds to.
func (c Config) ListenAddr() string {
	return ":" + c.Port
}

// APIKeyFor returns the configured credential for a provider. Ollama needs
// none.
func (c Config) APIKeyFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// parseModels parses a comma-separated provider:model list, skipping
// malformed entries.
func parseModels(s string) []ModelRef {
	var refs []ModelRef
	for _, part := range strings.Split(s, ",") {
		ref := parseModel(part)
		if ref.Model != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func parseModel(s string) ModelRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelRef{}
	}
	provider, model, found := strings.Cut(s, ":")
	if !found {
		return ModelRef{Provider: ProviderOpenAI, Model: s}
	}
	return ModelRef{Provider: strings.TrimSpace(provider), Model: strings.TrimSpace(model)}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "default", defaultVal)
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "default", defaultVal)
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// String renders a ModelRef as provider:model.
func (r ModelRef) String() string {
	return fmt.Sprintf("%s:%s", r.Provider, r.Model)
}
