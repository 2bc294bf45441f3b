// Package config loads ragchat configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

// Supported providers.
const (
	ProviderGoogleAI  Provider = "googleai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Vector store backends.
const (
	VectorStoreQdrant = "qdrant"
	VectorStoreMemory = "memory"
)

// Chunk overlap modes.
const (
	OverlapChars     = "chars"
	OverlapSentences = "sentences"
)

// Config holds all configuration values.
type Config struct {
	// Server
	ServerPort string
	ServerURL  string

	// LLM providers
	LLMProvider     Provider
	EmbedProvider   Provider
	LLMModel        string
	EmbedModel      string
	EmbedDimension  int
	GeminiAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	AWSRegion       string

	// Vector store
	VectorStore      string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Sessions
	SessionMaxTurns      int
	SessionRetention     time.Duration
	SessionSweepInterval time.Duration

	// Retrieval and chunking
	RetrievalTopK    int
	HistoryTurns     int
	ChunkMaxSize     int
	ChunkOverlap     int
	ChunkOverlapMode string

	// ChatTimeout bounds one chat request end to end. Zero disables it.
	ChatTimeout time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first without overriding
// variables that are already set. If RAGCHAT_CONFIG names a YAML file, its
// keys act as defaults underneath the environment.
func Load() Config {
	_ = godotenv.Load()

	if path := os.Getenv("RAGCHAT_CONFIG"); path != "" {
		if err := applyFile(path); err != nil {
			slog.Warn("failed to read config file", "file", path, "error", err)
		}
	}

	return Config{
		ServerPort: getEnv("RAGCHAT_SERVER_PORT", "4000"),
		ServerURL:  getEnv("RAGCHAT_SERVER_URL", "http://localhost:4000/query"),

		LLMProvider:     Provider(getEnv("LLM_PROVIDER", string(ProviderGoogleAI))),
		EmbedProvider:   Provider(getEnv("EMBED_PROVIDER", string(ProviderGoogleAI))),
		LLMModel:        getEnv("LLM_MODEL", "gemini-1.5-flash"),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDimension:  getEnvInt("EMBED_DIMENSION", 768),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		VectorStore:      getEnv("VECTOR_STORE", VectorStoreQdrant),
		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "knowledgeBase"),

		SessionMaxTurns:      getEnvInt("SESSION_MAX_TURNS", 20),
		SessionRetention:     getEnvDuration("SESSION_RETENTION", 24*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Hour),

		RetrievalTopK:    getEnvInt("RETRIEVAL_TOP_K", 5),
		HistoryTurns:     getEnvInt("HISTORY_TURNS", 5),
		ChunkMaxSize:     getEnvInt("CHUNK_MAX_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 100),
		ChunkOverlapMode: getEnv("CHUNK_OVERLAP_MODE", OverlapChars),

		ChatTimeout: getEnvDuration("CHAT_TIMEOUT", 60*time.Second),

		LogFile:  getEnv("LOG_FILE", "/tmp/ragchat.log"),
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
	}
}

// QdrantAddress returns the Qdrant endpoint, falling back to the local gRPC port.
func (c Config) QdrantAddress() string {
	if c.QdrantURL == "" {
		return "http://localhost:6334"
	}
	return c.QdrantURL
}

// Validate reports configuration that would make adapters fail at first use.
func (c Config) Validate() error {
	var errs []error

	usesGoogle := c.LLMProvider == ProviderGoogleAI || c.EmbedProvider == ProviderGoogleAI
	if usesGoogle && c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required for the googleai provider"))
	}
	if c.LLMProvider == ProviderAnthropic && c.AnthropicAPIKey == "" {
		errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
	}
	if c.EmbedProvider == ProviderAnthropic {
		errs = append(errs, errors.New("anthropic does not provide embeddings"))
	}
	if c.VectorStore != VectorStoreQdrant && c.VectorStore != VectorStoreMemory {
		errs = append(errs, fmt.Errorf("unsupported vector store: %s", c.VectorStore))
	}
	if c.EmbedDimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIMENSION must be positive, got %d", c.EmbedDimension))
	}
	if c.ChunkOverlap >= c.ChunkMaxSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_MAX_SIZE (%d)", c.ChunkOverlap, c.ChunkMaxSize))
	}

	return errors.Join(errs...)
}

// applyFile sets environment variables from a flat YAML map for every key
// not already present in the environment.
func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	for key, val := range values {
		key = strings.ToUpper(key)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
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
