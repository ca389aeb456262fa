package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, "\n", cfg.Chunker.Separator)
	assert.Equal(t, "separator", cfg.Chunker.Mode)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, time.Minute, cfg.GenerationTimeout())
	assert.Empty(t, cfg.Index.SnapshotPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OpenAIDefaults(t *testing.T) {
	path := writeFile(t, `
embedder:
  type: openai
  openai:
    batch_size: 8
generator:
  type: openai
chunker:
  chunk_size: 80
  overlap: 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, 8, cfg.Embedder.OpenAI.BatchSize)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 30*time.Second, cfg.Embedder.OpenAI.Timeout())

	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Generator.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Generator.OpenAI.BaseURL)

	assert.Equal(t, 80, cfg.Chunker.ChunkSize)
	assert.Equal(t, 20, cfg.Chunker.Overlap)
}

func TestLoad_ExplicitZeroOverlapKept(t *testing.T) {
	cfg, err := Load(writeFile(t, "chunker:\n  chunk_size: 200\n  overlap: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Chunker.Overlap)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"overlap too large", "chunker:\n  chunk_size: 50\n  overlap: 50\n", "chunker.overlap"},
		{"negative chunk size", "chunker:\n  chunk_size: -1\n", "chunker.chunk_size"},
		{"bad top k", "retriever:\n  top_k: -2\n", "retriever.top_k"},
		{"unknown embedder", "embedder:\n  type: bert\n", "embedder.type"},
		{"unknown generator", "generator:\n  type: magic\n", "generator.type"},
		{"unknown mode", "chunker:\n  mode: paragraph\n", "chunker.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "chunker: [unclosed"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	cfg := Default()
	cfg.Retriever.TopK = 7
	cfg.Index.SnapshotPath = "/tmp/index.db"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "ragqa", "config.yaml"), path)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)

	t.Run("prefers working directory file", func(t *testing.T) {
		require.NoError(t, os.WriteFile("config.yaml", []byte("retriever:\n  top_k: 9\n"), 0o644))
		cfg, path, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, "config.yaml", path)
		assert.Equal(t, 9, cfg.Retriever.TopK)
	})
}
