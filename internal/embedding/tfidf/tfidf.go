package tfidf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)
var _ domain.Fitter = (*Embedder)(nil)

// Embedder implements a simple TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes IDF values.
//
// Text that has no tokens left after stopword filtering is rejected with an
// EmbeddingError. Text whose tokens are all outside the vocabulary maps to the
// zero vector.
type Embedder struct {
	mu           sync.RWMutex
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Fit returns a new embedder prepared on corpus. The receiver keeps its own
// vocabulary, so vectors it already produced stay comparable with its queries.
func (e *Embedder) Fit(corpus []string) (domain.Embedder, error) {
	next := NewEmbedder()
	if err := next.Prepare(corpus); err != nil {
		return nil, err
	}
	return next, nil
}

// Prepare builds the vocabulary and IDF values from the provided corpus,
// replacing any earlier vocabulary.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return fmt.Errorf("empty corpus for TF-IDF prepare: %w", domain.ErrInvalidArgument)
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return fmt.Errorf("no tokens found in corpus; ensure tokenizer supports your language: %w", domain.ErrInvalidArgument)
	}
	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = vocabulary
	e.idf = idf
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Embed computes the TF-IDF embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.EmbeddingError{Input: -1, Err: err}
	}
	vec, err := e.embed(text)
	if err != nil {
		return nil, &domain.EmbeddingError{Input: -1, Err: err}
	}
	return vec, nil
}

// EmbedMany embeds texts in parallel. The output order matches the input; every
// failed input is reported.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	errs := make([]error, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = &domain.EmbeddingError{Input: i, Err: err}
				return nil
			}
			vec, err := e.embed(texts[i])
			if err != nil {
				errs[i] = &domain.EmbeddingError{Input: i, Err: err}
				return nil
			}
			out[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embed(text string) (domain.Vector, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, domain.ErrNotPrepared
	}
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens in text: %w", domain.ErrInvalidArgument)
	}
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokens {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	weights := make([]float64, e.dimension)
	for idx, count := range tf {
		weights[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	// L2 normalize
	norm := 0.0
	for _, v := range weights {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make(domain.Vector, e.dimension)
	if norm > 0 {
		for i, v := range weights {
			vec[i] = float32(v / norm)
		}
	}
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
