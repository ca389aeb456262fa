package domain

import "context"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a contiguous, bounded-length segment of a corpus used as a retrieval unit.
// ID is unique and monotonic for the splitter that produced it; Ordinal is the
// 0-based position within one split call.
type Chunk struct {
	ID      int
	Ordinal int
	Text    string
	Source  string
}

// Vector is a dense embedding. Every vector stored in one index has the same length.
type Vector []float32

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector Vector
}

// SearchResult represents a matching chunk with its cosine similarity to the query.
// Result slices are ordered by descending Score, ties broken by ascending Chunk.ID.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Embed is deterministic for a fixed model and text. EmbedMany preserves input
// order and returns exactly one vector per input.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedMany(ctx context.Context, texts []string) ([]Vector, error)
}

// Fitter is implemented by embedders that learn from the corpus before they
// can embed (for example TF-IDF). Fit returns a new embedder trained on corpus
// and leaves the receiver unchanged.
type Fitter interface {
	Fit(corpus []string) (Embedder, error)
}

// Prompt is the input handed to a Generator.
type Prompt struct {
	Question string
	Context  []string
	Text     string
}

// Generator produces an answer for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
