// Package testutil holds deterministic fixtures shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"ragqa/internal/domain"
)

// Concept axes of ConceptEmbedder.
const (
	Anomaly = iota
	Remedy
	Storage
	numConcepts
)

var lexicon = map[string]int{
	"lost": Anomaly, "update": Anomaly, "updates": Anomaly, "anomaly": Anomaly,
	"conflict": Anomaly, "conflicts": Anomaly, "conflicting": Anomaly, "race": Anomaly,

	"mitigate": Remedy, "mitigates": Remedy, "mitigation": Remedy, "locking": Remedy,
	"lock": Remedy, "locks": Remedy, "prevent": Remedy, "prevents": Remedy,
	"detect": Remedy, "detects": Remedy,

	"row": Storage, "rows": Storage, "transaction": Storage, "transactions": Storage,
	"write": Storage, "writes": Storage, "read-modify-write": Storage, "version": Storage,
	"checks": Storage,
}

// ErrUnreachable simulates a model that cannot be reached.
var ErrUnreachable = errors.New("model unreachable")

// ConceptEmbedder stands in for a semantic model: each axis is 1 when the
// text mentions any word of that concept. It is deterministic.
type ConceptEmbedder struct {
	// Down makes every call fail with ErrUnreachable.
	Down bool
	// Dim pads vectors to this length when larger than the concept count.
	Dim int

	Calls     atomic.Int32
	ManyCalls atomic.Int32
}

// NewConceptEmbedder returns a ready embedder.
func NewConceptEmbedder() *ConceptEmbedder { return &ConceptEmbedder{} }

func (e *ConceptEmbedder) Name() string { return "concept" }

func (e *ConceptEmbedder) Dimension() int { return max(e.Dim, numConcepts) }

func (e *ConceptEmbedder) Embed(_ context.Context, text string) (domain.Vector, error) {
	e.Calls.Add(1)
	v, err := e.embed(text)
	if err != nil {
		return nil, &domain.EmbeddingError{Input: -1, Err: err}
	}
	return v, nil
}

func (e *ConceptEmbedder) EmbedMany(_ context.Context, texts []string) ([]domain.Vector, error) {
	e.ManyCalls.Add(1)
	out := make([]domain.Vector, len(texts))
	var errs []error
	for i, t := range texts {
		v, err := e.embed(t)
		if err != nil {
			errs = append(errs, &domain.EmbeddingError{Input: i, Err: err})
			continue
		}
		out[i] = v
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Concepts returns the vector ConceptEmbedder produces for text. Fake
// embedding endpoints use it to answer like a semantic model.
func Concepts(text string) (domain.Vector, error) {
	return NewConceptEmbedder().embed(text)
}

func (e *ConceptEmbedder) embed(text string) (domain.Vector, error) {
	if e.Down {
		return nil, ErrUnreachable
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	if len(words) == 0 {
		return nil, fmt.Errorf("no words: %w", domain.ErrInvalidArgument)
	}
	v := make(domain.Vector, e.Dimension())
	for _, w := range words {
		if c, ok := lexicon[w]; ok {
			v[c] = 1
		}
	}
	return v, nil
}
