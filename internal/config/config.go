package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderOffline     = "offline"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Question generation
	GenerationProvider   string
	HuggingFaceToken     string
	HuggingFaceURL       string
	GeminiAPIKey         string
	GeminiModel          string
	GenerationTimeout    time.Duration
	MaxCards             int
	SynthesisConcurrency int

	// Tiers & billing
	FreeDailyGenerations int
	PaymentWebhookSecret string

	// Async jobs
	StoragePath string
	WorkerCount int

	// HTTP
	RateLimitPerMin int
	FrontendURL     string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "5000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		GenerationProvider:   getEnvOrDefault("GENERATION_PROVIDER", ProviderHuggingFace),
		HuggingFaceToken:     getEnvOrDefault("HUGGING_FACE_TOKEN", ""),
		HuggingFaceURL:       getEnvOrDefault("HF_API_URL", "https://api-inference.huggingface.co/models/google/flan-t5-base"),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GenerationTimeout:    getEnvAsDurationOrDefault("GENERATION_TIMEOUT", 15*time.Second),
		MaxCards:             getEnvAsIntOrDefault("MAX_CARDS", 10),
		SynthesisConcurrency: getEnvAsIntOrDefault("SYNTHESIS_CONCURRENCY", 1),
		FreeDailyGenerations: getEnvAsIntOrDefault("FREE_DAILY_GENERATIONS", 3),
		PaymentWebhookSecret: getEnvOrDefault("PAYMENT_WEBHOOK_SECRET", ""),
		StoragePath:          getEnvOrDefault("STORAGE_PATH", "./uploads"),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 3),
		RateLimitPerMin:      getEnvAsIntOrDefault("RATE_LIMIT_PER_MIN", 30),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.GenerationProvider {
	case ProviderHuggingFace:
		if c.HuggingFaceToken == "" {
			return fmt.Errorf("HUGGING_FACE_TOKEN is required when GENERATION_PROVIDER=%s", ProviderHuggingFace)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when GENERATION_PROVIDER=%s", ProviderGemini)
		}
	case ProviderOffline:
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	if c.MaxCards <= 0 {
		return fmt.Errorf("MAX_CARDS must be positive, got %d", c.MaxCards)
	}
	if c.SynthesisConcurrency <= 0 {
		return fmt.Errorf("SYNTHESIS_CONCURRENCY must be positive, got %d", c.SynthesisConcurrency)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("15s") or bare seconds ("15").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
