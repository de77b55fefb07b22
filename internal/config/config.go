package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names an extraction backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
	ProviderGemini    Provider = "gemini"
	ProviderDemo      Provider = "demo"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB job history (empty URL disables it)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string
	JobRetention       time.Duration

	// Extraction model
	LLMProvider     Provider
	LLMModel        string
	LLMTemperature  float64
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaHost      string
	AWSRegion       string

	// Remote extraction service; takes precedence over the model when set
	ExtractionURL string

	// Artifact blob store (empty endpoint keeps artifacts in memory)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// HTTP server
	Port            string
	SessionCapacity int
	SessionTTL      time.Duration

	// Orchestration
	JobTimeout     time.Duration
	CascadeOnRerun bool
	MaxBRDMB       int
	MaxAudioMB     int
	MaxVideoMB     int
	SystemsFile    string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if one exists.
func Load() Config {
	_ = godotenv.Load()

	provider := Provider(strings.ToLower(getEnv("REQJOURNEY_LLM_PROVIDER", string(ProviderOpenAI))))

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "reqjourney"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "analysis"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),
		JobRetention:       getDuration("REQJOURNEY_JOB_RETENTION", 30*24*time.Hour),

		LLMProvider:     provider,
		LLMModel:        getEnv("REQJOURNEY_LLM_MODEL", defaultModel(provider)),
		LLMTemperature:  getFloat("REQJOURNEY_LLM_TEMPERATURE", 0.1),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		ExtractionURL: getEnv("REQJOURNEY_EXTRACTION_URL", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "reqjourney-artifacts"),
		S3UseSSL:    getEnv("S3_USE_SSL", "false") == "true",

		Port:            getEnv("PORT", "8080"),
		SessionCapacity: getInt("REQJOURNEY_SESSION_CAPACITY", 256),
		SessionTTL:      getDuration("REQJOURNEY_SESSION_TTL", 2*time.Hour),

		JobTimeout:     getDuration("REQJOURNEY_JOB_TIMEOUT", 10*time.Minute),
		CascadeOnRerun: getEnv("REQJOURNEY_CASCADE_ON_RERUN", "false") == "true",
		MaxBRDMB:       getInt("REQJOURNEY_MAX_BRD_MB", 0),
		MaxAudioMB:     getInt("REQJOURNEY_MAX_AUDIO_MB", 0),
		MaxVideoMB:     getInt("REQJOURNEY_MAX_VIDEO_MB", 25),
		SystemsFile:    getEnv("REQJOURNEY_SYSTEMS_FILE", ""),

		LogFile:  getEnv("REQJOURNEY_LOG_FILE", "/tmp/reqjourney.log"),
		LogLevel: parseLogLevel(getEnv("REQJOURNEY_LOG_LEVEL", "INFO")),
	}
}

func defaultModel(p Provider) string {
	switch p {
	case ProviderOllama:
		return "llama3.1"
	case ProviderAnthropic:
		return "claude-sonnet-4-5"
	case ProviderBedrock:
		return "anthropic.claude-3-5-sonnet-20240620-v1:0"
	case ProviderGemini:
		return "gemini-2.5-flash"
	}
	return "gpt-4o"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
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
