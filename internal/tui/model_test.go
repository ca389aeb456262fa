package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

type fakeRAG struct {
	answer service.Answer
	err    error
	gotK   int
	// block makes Ask wait for its context instead of answering.
	block bool
}

func (f *fakeRAG) Ask(ctx context.Context, _ string, k int) (service.Answer, error) {
	f.gotK = k
	if f.block {
		<-ctx.Done()
		return service.Answer{}, ctx.Err()
	}
	return f.answer, f.err
}

func typeQuestion(t *testing.T, m Model, q string) Model {
	t.Helper()
	for _, r := range q {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func submit(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestAskFlow(t *testing.T) {
	rag := &fakeRAG{answer: service.Answer{
		Text: "Locking.",
		Sources: []domain.SearchResult{
			{Chunk: domain.Chunk{ID: 1, Text: "Optimistic locking detects conflicting writes via version checks."}, Score: 0.8},
			{Chunk: domain.Chunk{ID: 2, Text: "Pessimistic locking prevents conflicts via row locks."}, Score: 0.8},
		},
	}}
	m := New(context.Background(), rag, "summary", 2, time.Second)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	m = submit(t, typeQuestion(t, m, "what locks rows"))
	assert.False(t, m.busy)
	assert.Equal(t, 2, rag.gotK)
	assert.Equal(t, "Locking.", m.answer)
	assert.Len(t, m.results, 2)
	assert.Contains(t, m.status, "2 sources")
	assert.Contains(t, m.View(), "Source 1/2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestAskError(t *testing.T) {
	m := New(context.Background(), &fakeRAG{err: errors.New("no index")}, "", 3, time.Second)
	m = submit(t, typeQuestion(t, m, "anything"))
	assert.Contains(t, m.status, "no index")
	assert.Empty(t, m.results)
}

func TestAsk_ProgramContextCancelsQuestion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(ctx, &fakeRAG{block: true}, "", 3, time.Hour)
	m = typeQuestion(t, m, "anything")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	cancel()
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		next, _ = next.Update(msg)
	case <-time.After(5 * time.Second):
		t.Fatal("question kept running after the program context was cancelled")
	}
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Contains(t, m.status, context.Canceled.Error())
}

func TestBestSentence(t *testing.T) {
	sentences := []string{"Cats sleep.", "Row locks prevent conflicts.", "Version checks."}
	assert.Equal(t, 1, bestSentence(sentences, "which locks prevent conflicts"))
	assert.Equal(t, -1, bestSentence(sentences, "?!"))
	assert.Equal(t, 0, bestSentence(sentences, "unrelated words"))
}
