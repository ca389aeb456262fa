package vectorstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"ragqa/internal/domain"
)

// Index answers nearest-neighbour queries over indexed chunks.
// Results are ordered by descending cosine similarity, ties by ascending chunk id.
type Index interface {
	Search(query domain.Vector, k int) ([]domain.SearchResult, error)
	Len() int
	Dimension() int
}

// Snapshot is a persisted copy of an index together with what produced it.
type Snapshot struct {
	Fingerprint string
	Embedder    string
	Dimension   int
	Entries     []domain.IndexEntry
}

// SnapshotStore persists index snapshots across process restarts.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Close() error
}

// ErrNoSnapshot is returned by SnapshotStore.Load when nothing has been saved.
var ErrNoSnapshot = errors.New("no snapshot")

// Fingerprint identifies the inputs an index was built from. A snapshot is
// reusable only when the embedder, chunking parameters and chunk texts match.
func Fingerprint(embedder string, chunkSize, overlap int, texts []string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", embedder, chunkSize, overlap)
	for _, t := range texts {
		fmt.Fprintf(h, "%d\x00%s", len(t), t)
	}
	return hex.EncodeToString(h.Sum(nil))
}
