package memory

import (
	"container/heap"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

var _ vectorstore.Index = (*Index)(nil)

// Index is an exact in-memory vector index using brute-force cosine similarity.
//
// Vectors are L2-normalized at insertion, so a search is one dot product per entry.
// A zero vector has similarity 0 with everything. The index is read-only after
// Build; Add publishes a new copy of the entry set, so concurrent searches see
// either the old or the new set, never a partial one. The zero value is an
// empty index ready for Add.
type Index struct {
	mu    sync.Mutex // serializes writers
	state atomic.Pointer[state]
}

type state struct {
	dimension int
	entries   []entry
	ids       map[int]struct{}
}

var emptyState = &state{}

func (x *Index) load() *state {
	if st := x.state.Load(); st != nil {
		return st
	}
	return emptyState
}

type entry struct {
	chunk  domain.Chunk
	raw    domain.Vector
	normed []float64
}

// Option configures Build.
type Option func(*state)

// WithDimension fixes the index dimension up front, which lets an empty index
// reject query vectors of the wrong length.
func WithDimension(d int) Option {
	return func(s *state) {
		if d > 0 {
			s.dimension = d
		}
	}
}

// Build constructs an index from a batch of entries. Empty input produces an empty index.
func Build(entries []domain.IndexEntry, opts ...Option) (*Index, error) {
	s := &state{ids: make(map[int]struct{}, len(entries))}
	for _, opt := range opts {
		opt(s)
	}
	next, err := s.with(entries)
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	idx.state.Store(next)
	return idx, nil
}

// Add inserts entries into a live index. It fails without changing the index
// if any entry is invalid.
func (x *Index) Add(entries []domain.IndexEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	next, err := x.load().with(entries)
	if err != nil {
		return err
	}
	x.state.Store(next)
	return nil
}

// with returns a copy of s extended by entries.
func (s *state) with(entries []domain.IndexEntry) (*state, error) {
	next := &state{
		dimension: s.dimension,
		entries:   make([]entry, len(s.entries), len(s.entries)+len(entries)),
		ids:       make(map[int]struct{}, len(s.ids)+len(entries)),
	}
	copy(next.entries, s.entries)
	for id := range s.ids {
		next.ids[id] = struct{}{}
	}
	for i, e := range entries {
		if next.dimension == 0 {
			next.dimension = len(e.Vector)
			if next.dimension == 0 {
				return nil, fmt.Errorf("entry %d: empty vector: %w", i, domain.ErrInvalidArgument)
			}
		}
		if len(e.Vector) != next.dimension {
			return nil, &domain.DimensionMismatchError{Want: next.dimension, Got: len(e.Vector), Position: i}
		}
		if _, dup := next.ids[e.Chunk.ID]; dup {
			return nil, fmt.Errorf("entry %d, chunk %d: %w", i, e.Chunk.ID, domain.ErrDuplicateChunk)
		}
		normed, err := normalize(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		next.ids[e.Chunk.ID] = struct{}{}
		next.entries = append(next.entries, entry{
			chunk:  e.Chunk,
			raw:    slices.Clone(e.Vector),
			normed: normed,
		})
	}
	return next, nil
}

// Len returns the number of indexed entries.
func (x *Index) Len() int { return len(x.load().entries) }

// Dimension returns the vector length, or 0 for an empty index built without WithDimension.
func (x *Index) Dimension() int { return x.load().dimension }

// Entries returns a copy of the indexed entries in insertion order, with the vectors as given.
func (x *Index) Entries() []domain.IndexEntry {
	st := x.load()
	out := make([]domain.IndexEntry, len(st.entries))
	for i, e := range st.entries {
		out[i] = domain.IndexEntry{Chunk: e.chunk, Vector: slices.Clone(e.raw)}
	}
	return out
}

// Search returns up to min(k, Len()) entries ranked by cosine similarity to query.
// An empty index yields an empty result.
func (x *Index) Search(query domain.Vector, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k=%d: %w", k, domain.ErrInvalidArgument)
	}
	st := x.load()
	if st.dimension > 0 && len(query) != st.dimension {
		return nil, &domain.DimensionMismatchError{Want: st.dimension, Got: len(query), Position: -1}
	}
	if len(st.entries) == 0 {
		return []domain.SearchResult{}, nil
	}
	q, err := normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	h := make(hits, 0, min(k, len(st.entries))+1)
	for i := range st.entries {
		c := hit{entry: i, id: st.entries[i].chunk.ID, score: dot(q, st.entries[i].normed)}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	slices.SortFunc(h, func(a, b hit) int {
		if better(a, b) {
			return -1
		}
		if better(b, a) {
			return 1
		}
		return 0
	})

	results := make([]domain.SearchResult, len(h))
	for i, c := range h {
		results[i] = domain.SearchResult{Chunk: st.entries[c.entry].chunk, Score: c.score}
	}
	return results, nil
}

type hit struct {
	entry int
	id    int
	score float64
}

// better orders by score descending, then chunk id ascending.
func better(a, b hit) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

// hits is a min-heap whose root is the worst retained hit.
type hits []hit

func (h hits) Len() int           { return len(h) }
func (h hits) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hits) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hits) Push(x any)        { *h = append(*h, x.(hit)) }
func (h *hits) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func normalize(v domain.Vector) ([]float64, error) {
	out := make([]float64, len(v))
	norm := 0.0
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite component at %d: %w", i, domain.ErrInvalidArgument)
		}
		out[i] = f
		norm += f * f
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range out {
			out[i] /= norm
		}
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
