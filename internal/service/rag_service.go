package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ragqa/internal/answer"
	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/retriever"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
)

// Summarizer condenses the ingested corpus for display.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Config holds the chunking parameters of the service.
type Config struct {
	ChunkSize int
	Overlap   int
	Separator string
	Mode      chunker.Mode
	// SummarySentences bounds the corpus summary; zero disables it.
	SummarySentences int
}

// IngestReport describes the result of an ingest.
type IngestReport struct {
	Documents    int
	Chunks       int
	Dimension    int
	FromSnapshot bool
	Summary      string
}

// Answer is a generated reply together with the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []domain.SearchResult
}

// Option configures a RAGService.
type Option func(*RAGService)

// WithSnapshots persists the index after a full ingest and reuses a stored
// snapshot whose fingerprint matches the new corpus.
func WithSnapshots(store vectorstore.SnapshotStore) Option {
	return func(s *RAGService) { s.snapshots = store }
}

// WithSummarizer attaches a corpus summarizer.
func WithSummarizer(sum Summarizer) Option {
	return func(s *RAGService) { s.summarizer = sum }
}

// RAGService ties chunking, embedding, indexing, retrieval and answer
// composition together. Ingests are serialized; queries may run concurrently
// with each other and with an ingest.
type RAGService struct {
	cfg Config
	// embedder is the template for each full ingest. Embedders implementing
	// domain.Fitter are fitted into a fresh copy and never mutated.
	embedder   domain.Embedder
	composer   *answer.Composer
	snapshots  vectorstore.SnapshotStore
	summarizer Summarizer

	ingestMu sync.Mutex
	splitter *chunker.Splitter

	mu      sync.RWMutex
	current *indexState
}

// indexState is published as a whole: queries see the embedder the index was
// built with, or the previous pair, never a mix.
type indexState struct {
	embedder  domain.Embedder
	index     *memory.Index
	retriever *retriever.Retriever
}

// NewRAGService validates the chunking parameters and returns an empty service.
func NewRAGService(cfg Config, embedder domain.Embedder, composer *answer.Composer, opts ...Option) (*RAGService, error) {
	if _, err := newSplitter(cfg); err != nil {
		return nil, err
	}
	s := &RAGService{cfg: cfg, embedder: embedder, composer: composer}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func newSplitter(cfg Config) (*chunker.Splitter, error) {
	opts := []chunker.Option{chunker.WithMode(cfg.Mode)}
	if cfg.Separator != "" {
		opts = append(opts, chunker.WithSeparator(cfg.Separator))
	}
	return chunker.New(cfg.ChunkSize, cfg.Overlap, opts...)
}

// IngestDocuments replaces the index with the .txt files matched by paths.
// Each path may be a glob pattern. On failure the previous index stays in place.
func (s *RAGService) IngestDocuments(ctx context.Context, paths []string) (IngestReport, error) {
	docs, err := loadDocuments(paths)
	if err != nil {
		return IngestReport{}, err
	}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.rebuild(ctx, docs)
}

// IngestText adds one text to the index. Chunk ids continue after the ones
// already indexed. With no index yet it behaves like a full ingest of the text.
// Incremental additions are not written to the snapshot store.
func (s *RAGService) IngestText(ctx context.Context, source, text string) (IngestReport, error) {
	doc := domain.Document{ID: hashString(source), Path: source, Content: text}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	st := s.state()
	if st == nil {
		return s.rebuild(ctx, []domain.Document{doc})
	}
	chunks, err := s.splitter.Chunk(doc)
	if err != nil {
		return IngestReport{}, err
	}
	entries, err := embed(ctx, st.embedder, chunks)
	if err != nil {
		return IngestReport{}, err
	}
	idx := st.index
	if err := idx.Add(entries); err != nil {
		return IngestReport{}, fmt.Errorf("add to index: %w", err)
	}
	logger.Debug("added %d chunks from %s", len(chunks), source)
	return IngestReport{Documents: 1, Chunks: len(chunks), Dimension: idx.Dimension()}, nil
}

func (s *RAGService) rebuild(ctx context.Context, docs []domain.Document) (IngestReport, error) {
	logger.Section("Ingest")
	splitter, err := newSplitter(s.cfg)
	if err != nil {
		return IngestReport{}, err
	}

	var chunks []domain.Chunk
	var corpus strings.Builder
	for _, d := range docs {
		cs, err := splitter.Chunk(d)
		if err != nil {
			return IngestReport{}, fmt.Errorf("chunk %s: %w", d.Path, err)
		}
		logger.Debug("%s: %d chunks", d.Path, len(cs))
		chunks = append(chunks, cs...)
		corpus.WriteString("\n")
		corpus.WriteString(d.Content)
	}
	texts := chunkTexts(chunks)

	emb := s.embedder
	if f, ok := emb.(domain.Fitter); ok && len(texts) > 0 {
		if emb, err = f.Fit(texts); err != nil {
			return IngestReport{}, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	report := IngestReport{Documents: len(docs), Chunks: len(chunks)}
	fingerprint := vectorstore.Fingerprint(emb.Name(), s.cfg.ChunkSize, s.cfg.Overlap, texts)

	entries, ok := s.fromSnapshot(ctx, emb, fingerprint)
	if ok {
		report.FromSnapshot = true
	} else {
		start := time.Now()
		entries, err = embed(ctx, emb, chunks)
		if err != nil {
			return IngestReport{}, err
		}
		logger.Since(fmt.Sprintf("embedding %d chunks", len(chunks)), start)
	}

	idx, err := memory.Build(entries)
	if err != nil {
		return IngestReport{}, fmt.Errorf("build index: %w", err)
	}
	report.Dimension = idx.Dimension()

	if s.snapshots != nil && !report.FromSnapshot {
		snap := vectorstore.Snapshot{
			Fingerprint: fingerprint,
			Embedder:    emb.Name(),
			Dimension:   idx.Dimension(),
			Entries:     entries,
		}
		if err := s.snapshots.Save(ctx, snap); err != nil {
			return IngestReport{}, fmt.Errorf("save snapshot: %w", err)
		}
		logger.Debug("snapshot saved (%d entries)", len(entries))
	}

	if s.summarizer != nil && s.cfg.SummarySentences > 0 {
		report.Summary, err = s.summarizer.Summarize(corpus.String(), s.cfg.SummarySentences)
		if err != nil {
			return IngestReport{}, fmt.Errorf("summarize: %w", err)
		}
	}

	s.splitter = splitter
	s.mu.Lock()
	s.current = &indexState{embedder: emb, index: idx, retriever: retriever.New(emb, idx)}
	s.mu.Unlock()
	logger.Info("indexed %d chunks from %d documents (dimension %d)", report.Chunks, report.Documents, report.Dimension)
	return report, nil
}

// fromSnapshot returns the stored entries when the stored fingerprint matches.
// A missing or unreadable snapshot means the corpus is embedded again.
func (s *RAGService) fromSnapshot(ctx context.Context, emb domain.Embedder, fingerprint string) ([]domain.IndexEntry, bool) {
	if s.snapshots == nil {
		return nil, false
	}
	snap, err := s.snapshots.Load(ctx)
	switch {
	case errors.Is(err, vectorstore.ErrNoSnapshot):
		return nil, false
	case err != nil:
		logger.Warn("ignoring unreadable snapshot: %v", err)
		return nil, false
	case snap.Fingerprint != fingerprint:
		logger.Debug("snapshot fingerprint changed, re-embedding")
		return nil, false
	}
	if d := emb.Dimension(); d > 0 && snap.Dimension != d {
		logger.Warn("snapshot dimension %d does not match embedder dimension %d", snap.Dimension, d)
		return nil, false
	}
	logger.Debug("reusing snapshot with %d entries", len(snap.Entries))
	return snap.Entries, true
}

func embed(ctx context.Context, emb domain.Embedder, chunks []domain.Chunk) ([]domain.IndexEntry, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vecs, err := emb.EmbedMany(ctx, chunkTexts(chunks))
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = domain.IndexEntry{Chunk: chunks[i], Vector: vecs[i]}
	}
	return entries, nil
}

func (s *RAGService) state() *indexState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Len returns the number of indexed chunks.
func (s *RAGService) Len() int {
	st := s.state()
	if st == nil {
		return 0
	}
	return st.index.Len()
}

// Query returns the k chunks most similar to query. Nothing indexed yields an
// empty result.
func (s *RAGService) Query(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d: %w", k, domain.ErrInvalidArgument)
	}
	st := s.state()
	if st == nil || st.index.Len() == 0 {
		return []domain.SearchResult{}, nil
	}
	return st.retriever.Retrieve(ctx, query, k)
}

// Ask retrieves context for question and generates an answer from it. It
// fails with domain.ErrEmptyIndex when nothing has been indexed.
func (s *RAGService) Ask(ctx context.Context, question string, k int) (Answer, error) {
	st := s.state()
	if st == nil || st.index.Len() == 0 {
		return Answer{}, domain.ErrEmptyIndex
	}
	results, err := st.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}
	text, err := s.composer.Answer(ctx, question, results)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Sources: results}, nil
}

func loadDocuments(paths []string) ([]domain.Document, error) {
	var documents []domain.Document
	seen := make(map[string]struct{})
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, domain.ErrInvalidArgument)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			documents = append(documents, domain.Document{ID: hashString(m), Path: m, Content: string(data)})
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no .txt documents found: %w", domain.ErrInvalidArgument)
	}
	return documents, nil
}

func chunkTexts(chunks []domain.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
