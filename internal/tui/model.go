package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ask(ctx context.Context, question string, k int) (service.Answer, error)
}

type answerMsg struct {
	question string
	answer   service.Answer
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	service   RAGPort
	topK      int
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	answer    string
	results   []domain.SearchResult
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance. Each question retrieves topK chunks and
// must be answered within timeout. Cancelling ctx aborts a pending question;
// pass the same context the program runs with.
func New(ctx context.Context, service RAGPort, summary string, topK int, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		topK:     topK,
		timeout:  timeout,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Ask a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		ans, err := m.service.Ask(ctx, q, m.topK)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = ""
			m.results = nil
		} else {
			m.status = fmt.Sprintf("Answer for %q (%d sources)", msg.question, len(msg.answer.Sources))
			m.answer = msg.answer.Text
			m.results = msg.answer.Sources
			m.cursor = 0
			m.lastQuery = msg.question
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout, the answer and the current source.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Question Answering")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if m.answer == "" && len(m.results) == 0 {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer))
	if len(m.results) == 0 {
		return b.String()
	}
	r := m.results[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  chunk=%d  score=%.3f  %s\n\n", m.cursor+1, len(m.results), r.Chunk.ID, r.Score, r.Chunk.Source)
	b.WriteString(highlightBestSentence(r.Chunk.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

func highlightBestSentence(text, query string) string {
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	i := bestSentence(sentences, query)
	if i >= 0 {
		sentences[i] = highlightStyle.Render(sentences[i])
	}
	return strings.Join(sentences, " ")
}

// bestSentence returns the index of the sentence sharing the most words with
// query, or -1 when the query has no words.
func bestSentence(sentences []string, query string) int {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return -1
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for t := range toTokenSet(s) {
			if _, ok := qTokens[t]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
