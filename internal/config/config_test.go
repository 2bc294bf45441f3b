package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"LLM_PROVIDER", "EMBED_DIMENSION", "QDRANT_COLLECTION", "SESSION_RETENTION", "CHAT_TIMEOUT", "RAGCHAT_CONFIG"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ProviderGoogleAI, cfg.LLMProvider)
	assert.Equal(t, 768, cfg.EmbedDimension)
	assert.Equal(t, "knowledgeBase", cfg.QdrantCollection)
	assert.Equal(t, 20, cfg.SessionMaxTurns)
	assert.Equal(t, 24*time.Hour, cfg.SessionRetention)
	assert.Equal(t, time.Hour, cfg.SessionSweepInterval)
	assert.Equal(t, 1000, cfg.ChunkMaxSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, time.Minute, cfg.ChatTimeout)
	assert.Equal(t, "http://localhost:6334", cfg.QdrantAddress())
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EMBED_DIMENSION", "many")
	t.Setenv("SESSION_RETENTION", "a day")
	t.Setenv("CHAT_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 768, cfg.EmbedDimension)
	assert.Equal(t, 24*time.Hour, cfg.SessionRetention)
	assert.Equal(t, time.Minute, cfg.ChatTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "ragchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qdrant_collection: docs\nretrieval_top_k: 7\n"), 0o644))

	t.Setenv("RAGCHAT_CONFIG", path)
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("QDRANT_COLLECTION", "")
	os.Unsetenv("QDRANT_COLLECTION")
	t.Cleanup(func() { os.Unsetenv("QDRANT_COLLECTION") })

	cfg := Load()

	assert.Equal(t, "docs", cfg.QdrantCollection, "file value used when env is unset")
	assert.Equal(t, 3, cfg.RetrievalTopK, "environment wins over file")
}

func TestValidate(t *testing.T) {
	base := Config{
		LLMProvider:    ProviderGoogleAI,
		EmbedProvider:  ProviderGoogleAI,
		GeminiAPIKey:   "key",
		VectorStore:    VectorStoreQdrant,
		EmbedDimension: 768,
		ChunkMaxSize:   1000,
		ChunkOverlap:   100,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing gemini key", func(c *Config) { c.GeminiAPIKey = "" }, "GEMINI_API_KEY"},
		{"anthropic embeddings", func(c *Config) { c.EmbedProvider = ProviderAnthropic }, "does not provide embeddings"},
		{"unknown store", func(c *Config) { c.VectorStore = "pinecone" }, "unsupported vector store"},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = 1000 }, "CHUNK_OVERLAP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("chat completed", "session_id", "s1")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "session_id=s1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &entry))
	assert.Equal(t, "chat completed", entry["msg"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}
