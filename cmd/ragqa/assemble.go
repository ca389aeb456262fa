package main

import (
	"fmt"

	"ragqa/internal/answer"
	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
	llmopenai "ragqa/internal/llm/openai"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore/sqlite"
)

const summarySentences = 3

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:           oc.BaseURL,
			APIKeyEnv:         oc.APIKeyEnv,
			Model:             oc.Model,
			Timeout:           oc.Timeout(),
			BatchSize:         oc.BatchSize,
			Concurrency:       oc.Concurrency,
			RequestsPerSecond: oc.RequestsPerSecond,
			Dimensions:        oc.Dimensions,
			MaxRetries:        oc.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "extractive":
		return summarizer.NewFrequencySummarizer(cfg.Generator.MaxSentences), nil
	case "openai":
		oc := cfg.Generator.OpenAI
		gen, err := llmopenai.NewGenerator(llmopenai.Config{
			BaseURL:     oc.BaseURL,
			APIKeyEnv:   oc.APIKeyEnv,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			Timeout:     oc.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
}

// newService assembles the pipeline from cfg. The returned func releases the
// snapshot store, if any.
func newService(cfg *config.AppConfig) (*service.RAGService, func(), error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []service.Option{service.WithSummarizer(summarizer.NewFrequencySummarizer(0))}
	closer := func() {}
	if cfg.Index.SnapshotPath != "" {
		store, err := sqlite.Open(cfg.Index.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot store: %w", err)
		}
		opts = append(opts, service.WithSnapshots(store))
		closer = func() { _ = store.Close() }
	}

	svc, err := service.NewRAGService(service.Config{
		ChunkSize:        cfg.Chunker.ChunkSize,
		Overlap:          cfg.Chunker.Overlap,
		Separator:        cfg.Chunker.Separator,
		Mode:             chunker.Mode(cfg.Chunker.Mode),
		SummarySentences: summarySentences,
	}, emb, answer.New(gen, cfg.GenerationTimeout()), opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return svc, closer, nil
}
