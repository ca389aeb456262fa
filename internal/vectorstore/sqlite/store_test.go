package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSnapshot() vectorstore.Snapshot {
	return vectorstore.Snapshot{
		Fingerprint: "abc",
		Embedder:    "tfidf",
		Dimension:   3,
		Entries: []domain.IndexEntry{
			{Chunk: domain.Chunk{ID: 4, Ordinal: 0, Text: "first", Source: "a.txt"}, Vector: domain.Vector{0.5, -1.25, 3}},
			{Chunk: domain.Chunk{ID: 2, Ordinal: 1, Text: "second", Source: "a.txt"}, Vector: domain.Vector{0, 0, 1e-7}},
		},
	}
}

func TestLoad_Empty(t *testing.T) {
	s := openTemp(t)
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrNoSnapshot)
}

func TestSaveLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	want := sampleSnapshot()

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got, "insertion order and exact float bits survive")
}

func TestSave_Replaces(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	next := vectorstore.Snapshot{
		Fingerprint: "def",
		Embedder:    "openai:text-embedding-3-small",
		Dimension:   2,
		Entries: []domain.IndexEntry{
			{Chunk: domain.Chunk{ID: 0, Text: "only"}, Vector: domain.Vector{1, 2}},
		},
	}
	require.NoError(t, s.Save(ctx, next))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestSave_RejectsMismatchedVectors(t *testing.T) {
	s := openTemp(t)
	snap := sampleSnapshot()
	snap.Dimension = 2
	err := s.Save(context.Background(), snap)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrNoSnapshot, "nothing is written on failure")
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Fingerprint)
	assert.Len(t, got.Entries, 2)
}

func TestDecodeVector_BadLength(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
