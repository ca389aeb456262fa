// Package retriever maps a query string to the indexed chunks most similar to it.
package retriever

import (
	"context"
	"fmt"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/vectorstore"
)

// Retriever composes an embedder with a vector index.
type Retriever struct {
	embedder domain.Embedder
	index    vectorstore.Index
}

// New creates a Retriever. The embedder must produce vectors of the index dimension.
func New(embedder domain.Embedder, index vectorstore.Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds query and returns up to k chunks ranked by similarity.
// Embedding and index errors are returned wrapped, so errors.Is and errors.As
// still tell an embedding failure from a dimension mismatch. An empty index
// yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("retrieve: k=%d: %w", k, domain.ErrInvalidArgument)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	results, err := r.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	logger.Debug("retrieved %d of %d chunks for %q", len(results), r.index.Len(), query)
	return results, nil
}
