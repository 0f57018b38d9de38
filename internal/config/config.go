package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	RedisURL string

	// SearXNG search configuration
	SearXNGURL    string
	SearchBreadth int // candidates fetched for a fresh search
	SearchTimeout time.Duration

	// LLM configuration (OpenAI-compatible chat completions endpoint)
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Scraper configuration
	MaxSourceChars    int // per-source extracted text cap
	ScrapeTimeout     time.Duration
	AllowPrivateHosts bool // disables the SSRF check; never enable in production

	// Orchestrator configuration
	MinContextChars int    // below this, the sentinel answer is returned without inference
	PhrasesFile     string // JSON file with insufficiency phrases; optional

	// Context encryption at rest (hex-encoded 32-byte key); optional
	EncryptionMasterKey string

	// Retention cleanup
	ChatRetentionDays int    // 0 disables the cleanup job
	RetentionSchedule string // cron expression
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3000"),
		MongoURI: getEnv("MONGODB_URI", "mongodb://localhost:27017/web-research-assistant"),
		RedisURL: getEnv("REDIS_URL", ""),

		SearXNGURL:    getEnv("SEARXNG_URL", "http://localhost:8080"),
		SearchBreadth: getIntEnv("SEARCH_BREADTH", 5),
		SearchTimeout: getDurationEnv("SEARCH_TIMEOUT", 30*time.Second),

		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMTemperature: getFloatEnv("LLM_TEMPERATURE", 0.2),
		LLMTimeout:     getDurationEnv("LLM_TIMEOUT", 120*time.Second),

		MaxSourceChars:    getIntEnv("MAX_SOURCE_CHARS", 5000),
		ScrapeTimeout:     getDurationEnv("SCRAPE_TIMEOUT", 60*time.Second),
		AllowPrivateHosts: getBoolEnv("ALLOW_PRIVATE_HOSTS", false),

		MinContextChars: getIntEnv("MIN_CONTEXT_CHARS", 100),
		PhrasesFile:     getEnv("PHRASES_FILE", "phrases.json"),

		EncryptionMasterKey: getEnv("ENCRYPTION_MASTER_KEY", ""),

		ChatRetentionDays: getIntEnv("CHAT_RETENTION_DAYS", 0),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
