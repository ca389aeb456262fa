package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
)

// OpenAIConfig holds the shared settings of an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	OpenAIConfig      `yaml:",inline"`
	BatchSize         int     `yaml:"batch_size"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Dimensions        int     `yaml:"dimensions"`
	MaxRetries        int     `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Mode      string `yaml:"mode"`
	ChunkSize int    `yaml:"chunk_size"`
	Overlap   int    `yaml:"overlap"`
	Separator string `yaml:"separator"`
}

// IndexConfig configures index snapshots. An empty SnapshotPath disables them.
type IndexConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

// RetrieverConfig configures retrieval.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// OpenAIGeneratorConfig holds configuration for the chat-completion generator.
type OpenAIGeneratorConfig struct {
	OpenAIConfig `yaml:",inline"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type         string                 `yaml:"type"`
	TimeoutSecs  int                    `yaml:"timeout_secs"`
	MaxSentences int                    `yaml:"max_sentences"`
	OpenAI       *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunker.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, chunk_size), got %d", c.Chunker.Overlap))
	}
	switch chunker.Mode(c.Chunker.Mode) {
	case chunker.ModeSeparator, chunker.ModeSentence:
	default:
		errs = append(errs, fmt.Errorf("unknown chunker.mode %q", c.Chunker.Mode))
	}
	if c.Retriever.TopK < 1 {
		errs = append(errs, fmt.Errorf("retriever.top_k must be at least 1, got %d", c.Retriever.TopK))
	}
	switch c.Embedder.Type {
	case "tfidf", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder.type %q", c.Embedder.Type))
	}
	switch c.Generator.Type {
	case "extractive", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown generator.type %q", c.Generator.Type))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w: %w", domain.ErrInvalidArgument, err)
	}
	return nil
}

// GenerationTimeout returns the generator timeout as a duration.
func (c *AppConfig) GenerationTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSecs) * time.Second
}

// Timeout returns the request timeout as a duration.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

// Default returns the configuration used when no file exists. Everything runs
// offline: TF-IDF embeddings and extractive answers.
//
// TF-IDF ranks by shared words only. A question that paraphrases the corpus
// ("What mitigates lost updates?" against chunks about locking) favours the
// chunk repeating its words. Set embedder.type to openai for semantic ranking.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Chunker.Mode == "" {
		cfg.Chunker.Mode = string(chunker.ModeSeparator)
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = chunker.DefaultChunkSize
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = chunker.DefaultOverlap
		}
	}
	if cfg.Chunker.Separator == "" {
		cfg.Chunker.Separator = chunker.DefaultSeparator
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 3
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "extractive"
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Generator.MaxSentences == 0 {
		cfg.Generator.MaxSentences = 2
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		applyOpenAIDefaults(&cfg.Embedder.OpenAI.OpenAIConfig, "text-embedding-3-small", 30)
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
		if cfg.Embedder.OpenAI.Concurrency == 0 {
			cfg.Embedder.OpenAI.Concurrency = 4
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 5
		}
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		applyOpenAIDefaults(&cfg.Generator.OpenAI.OpenAIConfig, "gpt-3.5-turbo", 120)
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string, timeoutSecs int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeoutSecs
	}
}
