package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"ragqa/internal/domain"
)

var _ domain.Chunker = (*Splitter)(nil)

// Default chunking parameters.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 100
	DefaultSeparator = "\n"
)

// Mode selects how text is cut into atomic units before they are packed into chunks.
type Mode string

const (
	// ModeSeparator cuts on a literal separator string.
	ModeSeparator Mode = "separator"
	// ModeSentence cuts on sentence punctuation and joins units with a space.
	ModeSentence Mode = "sentence"
)

// Splitter packs atomic units of text into overlapping chunks of at most
// chunkSize characters. A unit longer than chunkSize becomes its own chunk.
//
// Chunk ids keep increasing across calls on the same Splitter, so one Splitter
// should feed one index.
type Splitter struct {
	chunkSize int
	overlap   int
	separator string
	mode      Mode

	mu     sync.Mutex
	nextID int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparator sets the literal separator used in ModeSeparator.
func WithSeparator(sep string) Option {
	return func(s *Splitter) {
		s.separator = sep
	}
}

// WithMode selects the unit mode.
func WithMode(m Mode) Option {
	return func(s *Splitter) {
		if m != "" {
			s.mode = m
		}
	}
}

// WithStartID sets the id assigned to the first chunk produced.
func WithStartID(id int) Option {
	return func(s *Splitter) {
		if id >= 0 {
			s.nextID = id
		}
	}
}

// New creates a Splitter. chunkSize must be positive and 0 <= overlap < chunkSize.
func New(chunkSize, overlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", chunkSize, domain.ErrInvalidArgument)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be in [0, %d): %w", overlap, chunkSize, domain.ErrInvalidArgument)
	}
	s := &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
		separator: DefaultSeparator,
		mode:      ModeSeparator,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode != ModeSeparator && s.mode != ModeSentence {
		return nil, fmt.Errorf("unknown chunker mode %q: %w", s.mode, domain.ErrInvalidArgument)
	}
	return s, nil
}

// NextID returns the id the next chunk will receive.
func (s *Splitter) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// Chunk splits a document and tags each chunk with the document path.
func (s *Splitter) Chunk(document domain.Document) ([]domain.Chunk, error) {
	chunks := s.Split(document.Content)
	for i := range chunks {
		chunks[i].Source = document.Path
	}
	return chunks, nil
}

// Split cuts text into ordered chunks. Empty input yields no chunks.
//
// A chunk made only of whitespace (for example a line of spaces between two
// separators that fills a chunk by itself) is dropped: it carries nothing to
// embed. Ids and ordinals stay contiguous over the chunks that remain.
// Whitespace inside a chunk with text is kept as is.
func (s *Splitter) Split(text string) []domain.Chunk {
	texts := s.merge(s.units(text))
	if len(texts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{ID: s.nextID, Ordinal: i, Text: t}
		s.nextID++
	}
	return chunks
}

func (s *Splitter) joiner() string {
	if s.mode == ModeSentence {
		return " "
	}
	return s.separator
}

func (s *Splitter) units(text string) []string {
	if s.mode == ModeSentence {
		return Sentences(text)
	}
	raw := strings.Split(text, s.separator)
	out := raw[:0]
	for _, u := range raw {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

var sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+`)

// Sentences splits text after runs of terminal punctuation. Trailing text
// without punctuation is kept as a final sentence. Sentences are trimmed and
// empty ones dropped.
func Sentences(text string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]])
		end = loc[1]
	}
	if end < len(text) {
		add(text[end:])
	}
	return out
}

// merge greedily packs units. After a chunk is emitted, leading units are dropped
// until what remains is at most overlap characters and leaves room for the next unit.
func (s *Splitter) merge(units []string) []string {
	sepLen := utf8.RuneCountInString(s.joiner())
	join := func(n int) int {
		if n > 0 {
			return sepLen
		}
		return 0
	}

	var out []string
	var current []string
	total := 0
	for _, u := range units {
		n := utf8.RuneCountInString(u)
		if total+n+join(len(current)) > s.chunkSize && len(current) > 0 {
			out = s.appendChunk(out, current)
			for total > s.overlap || (total > 0 && total+n+join(len(current)) > s.chunkSize) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total += n + join(len(current))
		current = append(current, u)
	}
	if len(current) > 0 {
		out = s.appendChunk(out, current)
	}
	return out
}

// appendChunk joins units into one chunk unless the result is blank.
func (s *Splitter) appendChunk(out, units []string) []string {
	text := strings.Join(units, s.joiner())
	if strings.TrimSpace(text) == "" {
		return out
	}
	return append(out, text)
}
