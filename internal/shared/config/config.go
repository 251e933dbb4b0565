package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"promptscan-backend/internal/shared/telemetry"
)

const (
	defaultMaxOutputTokens = 1000
	defaultTemperature     = 0.7
	defaultPromptDelay     = time.Second
	defaultLLMTimeout      = 120 * time.Second
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	DatabaseURL     string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider        string
	LLMModel           string
	LLMMaxOutputTokens int
	LLMTemperature     float32
	LLMTimeout         time.Duration
	PromptDelay        time.Duration
	GeminiAPIKey       string
	OpenAIAPIKey       string
	AnthropicAPIKey    string

	BatchQueueURL string
	BatchCron     string
	BatchCronKey  string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
// Values from CONFIG_FILE (yaml or toml) act as defaults that env vars override.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		values, err := loadConfigFile(path)
		if err != nil {
			telemetry.Warn("config.file_ignored", map[string]any{"path": path, "error": err.Error()})
		} else {
			fileValues = values
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := getEnv("DATABASE_URL", "")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_missing", map[string]any{"env": env, "fallback": "memory"})
	}

	temperature := float32(getEnvFloat("LLM_TEMPERATURE", defaultTemperature))
	if temperature <= 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": "LLM_TEMPERATURE", "error": "must be positive", "fallback": defaultTemperature})
		temperature = defaultTemperature
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		LLMProvider:        NormalizeProvider(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:           getEnv("LLM_MODEL", ""),
		LLMMaxOutputTokens: getEnvInt("LLM_MAX_OUTPUT_TOKENS", defaultMaxOutputTokens),
		LLMTemperature:     temperature,
		LLMTimeout:         time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", int(defaultLLMTimeout/time.Second))) * time.Second,
		PromptDelay:        time.Duration(getEnvInt("PROMPT_DELAY_MS", int(defaultPromptDelay/time.Millisecond))) * time.Millisecond,
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),

		BatchQueueURL: getEnv("BATCH_SQS_QUEUE_URL", ""),
		BatchCron:     getEnv("BATCH_CRON", ""),
		BatchCronKey:  getEnv("BATCH_CRON_KEY", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0.5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 3),
	}
}

var fileValues map[string]string

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := fileValues[strings.ToLower(key)]; ok && val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "error": err.Error(), "fallback": def})
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "error": err.Error(), "fallback": def})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// NormalizeProvider maps a provider name or alias to gemini, openai,
// anthropic or placeholder. Unknown names select gemini.
func NormalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "anthropic", "claude":
		return "anthropic"
	case "placeholder", "none":
		return "placeholder"
	default:
		return "gemini"
	}
}
