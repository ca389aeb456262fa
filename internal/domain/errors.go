package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbedding indicates the embedding model rejected the input or could not be reached.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch indicates vectors of inconsistent length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyIndex indicates an operation that needs indexed content ran against an empty index.
	// Search itself never returns it; an empty index yields an empty result.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrInvalidArgument indicates malformed input such as k < 1 or empty text.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotPrepared indicates an embedder that needs Prepare was used before it.
	ErrNotPrepared = errors.New("embedder not prepared")

	// ErrDuplicateChunk indicates two entries with the same chunk id.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrGeneration indicates the answer generator failed.
	ErrGeneration = errors.New("generation failed")
)

// EmbeddingError reports a failed embedding. Input is the position of the text
// in a batch call, or -1 for a single call.
type EmbeddingError struct {
	Input int
	Err   error
}

func (e *EmbeddingError) Error() string {
	if e.Input < 0 {
		return fmt.Sprintf("embedding failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding input %d failed: %v", e.Input, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is reports ErrEmbedding as a match.
func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// DimensionMismatchError reports a vector whose length differs from the index dimension.
// Position is the offending entry in a build batch, or -1 for a query vector.
type DimensionMismatchError struct {
	Want     int
	Got      int
	Position int
}

func (e *DimensionMismatchError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("dimension mismatch: query has %d, index has %d", e.Got, e.Want)
	}
	return fmt.Sprintf("dimension mismatch: entry %d has %d, want %d", e.Position, e.Got, e.Want)
}

// Is reports ErrDimensionMismatch as a match.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// GenerationError wraps a failure of the answer generator.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }

// Is reports ErrGeneration as a match.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
