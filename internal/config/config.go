package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	LogFormat       string
	JWTSecret       string
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	CorpusDir    string
	IndexPath    string
	RetrievalK   int
	ChunkSize    int
	ChunkOverlap int
	ChunkUnit    string // runes or tokens

	EmbedProvider  string
	EmbedModel     string
	EmbedRateLimit float64
	EmbedCacheTTL  time.Duration

	LLMProvider  string
	LLMModel     string
	ChatTemplate string // mistral or plain
	Encoding     string // tiktoken encoding name

	OllamaURL     string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	GenerationWorkers   int
	GenerationQueueSize int
	GenerationTimeout   time.Duration
	GenerationRetries   int
	MaxProgramWeeks     int

	PGVectorURL string
	RedisURL    string

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		CorpusDir:    getEnv("CORPUS_DIR", "WHO_doc"),
		IndexPath:    getEnv("INDEX_PATH", "who_index.db"),
		RetrievalK:   getEnvAsInt("RETRIEVAL_K", 3),
		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 100),
		ChunkUnit:    getEnv("CHUNK_UNIT", "runes"),

		EmbedProvider:  strings.ToLower(getEnv("EMBED_PROVIDER", ProviderOllama)),
		EmbedModel:     getEnv("EMBED_MODEL", ""),
		EmbedRateLimit: getEnvAsFloat("EMBED_RATE_LIMIT", 25),
		EmbedCacheTTL:  getEnvAsDuration("EMBED_CACHE_TTL", 24*time.Hour),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama)),
		LLMModel:     getEnv("LLM_MODEL", ""),
		ChatTemplate: getEnv("LLM_CHAT_TEMPLATE", "mistral"),
		Encoding:     getEnv("TOKENIZER_ENCODING", "cl100k_base"),

		OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		GenerationWorkers:   getEnvAsInt("GENERATION_WORKERS", 1),
		GenerationQueueSize: getEnvAsInt("GENERATION_QUEUE_SIZE", 16),
		GenerationTimeout:   getEnvAsDuration("GENERATION_TIMEOUT", 5*time.Minute),
		GenerationRetries:   getEnvAsInt("GENERATION_RETRIES", 1),
		MaxProgramWeeks:     getEnvAsInt("MAX_PROGRAM_WEEKS", 52),

		PGVectorURL: getEnv("PGVECTOR_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		EnvFileLoaded: loaded,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	for _, p := range []struct{ name, value string }{
		{"EMBED_PROVIDER", c.EmbedProvider},
		{"LLM_PROVIDER", c.LLMProvider},
	} {
		switch p.value {
		case ProviderOllama, ProviderGemini, ProviderOpenAI:
		default:
			errs = append(errs, fmt.Errorf("%s must be one of ollama, gemini, openai (got %q)", p.name, p.value))
		}
	}
	if c.uses(ProviderGemini) && c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required for the gemini provider"))
	}
	if c.uses(ProviderOpenAI) && c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai provider"))
	}

	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, errors.New("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)"))
	}
	if c.ChunkUnit != "runes" && c.ChunkUnit != "tokens" {
		errs = append(errs, fmt.Errorf("CHUNK_UNIT must be runes or tokens (got %q)", c.ChunkUnit))
	}
	if c.ChatTemplate != "mistral" && c.ChatTemplate != "plain" {
		errs = append(errs, fmt.Errorf("LLM_CHAT_TEMPLATE must be mistral or plain (got %q)", c.ChatTemplate))
	}
	if c.RetrievalK <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_K must be positive"))
	}
	if c.GenerationWorkers <= 0 || c.GenerationQueueSize <= 0 {
		errs = append(errs, errors.New("GENERATION_WORKERS and GENERATION_QUEUE_SIZE must be positive"))
	}
	if c.GenerationRetries < 0 || c.GenerationRetries > 1 {
		errs = append(errs, errors.New("GENERATION_RETRIES must be 0 or 1"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_WRITE_TIMEOUT must be positive"))
	}
	if c.MaxProgramWeeks <= 0 {
		errs = append(errs, errors.New("MAX_PROGRAM_WEEKS must be positive"))
	}

	return errors.Join(errs...)
}

// RequestTimeout is the deadline for one model-backed HTTP request. It
// leaves a margin under WriteTimeout for writing the error response.
func (c *Config) RequestTimeout() time.Duration {
	margin := c.WriteTimeout / 20
	if margin < time.Second {
		margin = c.WriteTimeout / 2
	}
	return c.WriteTimeout - margin
}

func (c *Config) uses(provider string) bool {
	return c.EmbedProvider == provider || c.LLMProvider == provider
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
