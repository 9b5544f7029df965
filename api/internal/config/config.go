package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Provider selects the default engine: gemini | vertex | gpt | claude.
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	VertexProject  string
	VertexLocation string
	VertexModel    string

	OpenAIAPIKey string
	OpenAIModel  string

	AnthropicAPIKey string
	AnthropicModel  string

	TelegramBotToken string
	WebhookURL       string

	SessionCapacity int
	AnalyzeTimeout  time.Duration
	MaxImageBytes   int64
}

// MustEnv is for settings a binary cannot start without (e.g. the bot token).
// Provider credentials are deliberately not loaded through it: they fail on first use instead.
func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	// plain seconds, as in X-Request-Timeout
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: bad %s=%q, using %v", k, v, def)
	return def
}

// Load reads the environment, after merging a .env file from the working directory if one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Provider: strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		VertexProject:  getEnv("VERTEX_PROJECT", ""),
		VertexLocation: getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:    getEnv("VERTEX_MODEL", "gemini-2.5-flash"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		SessionCapacity: getEnvInt("SESSION_CAPACITY", 1024),
		AnalyzeTimeout:  getEnvDuration("ANALYZE_TIMEOUT", 180*time.Second),
		MaxImageBytes:   int64(getEnvInt("MAX_IMAGE_BYTES", 20<<20)),
	}
}
