// Package answer turns retrieved chunks and a question into a generated answer.
package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

// DefaultTimeout bounds a generation call when the caller gives none.
const DefaultTimeout = 60 * time.Second

const instructions = "Answer the following question based only on the provided context.\n" +
	"If you don't know the answer, just say that you don't know."

// Composer renders the prompt and calls the generation model.
type Composer struct {
	generator domain.Generator
	timeout   time.Duration
}

// New returns a Composer. A non-positive timeout selects DefaultTimeout.
func New(generator domain.Generator, timeout time.Duration) *Composer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Composer{generator: generator, timeout: timeout}
}

// BuildPrompt places the chunk texts, in rank order, ahead of the question.
func BuildPrompt(question string, results []domain.SearchResult) domain.Prompt {
	ctxTexts := make([]string, len(results))
	for i, r := range results {
		ctxTexts[i] = r.Chunk.Text
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(ctxTexts, "\n\n"))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)

	return domain.Prompt{Question: question, Context: ctxTexts, Text: b.String()}
}

// Answer generates a reply to question grounded in results. Failures, including
// the timeout expiring, are returned as *domain.GenerationError.
func (c *Composer) Answer(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", &domain.GenerationError{Err: errors.New("empty question")}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := BuildPrompt(question, results)
	logger.Debug("generating answer from %d context chunks", len(results))
	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &domain.GenerationError{Err: err}
	}
	return strings.TrimSpace(text), nil
}
