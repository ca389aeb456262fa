package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

const lockingCorpus = "A lost update occurs when two transactions read-modify-write the same row.\n" +
	"Optimistic locking detects conflicting writes via version checks.\n" +
	"Pessimistic locking prevents conflicts via row locks."

func texts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		overlap   int
		opts      []Option
		wantError bool
	}{
		{"valid", 10, 2, nil, false},
		{"zero overlap", 10, 0, nil, false},
		{"zero size", 0, 0, nil, true},
		{"negative overlap", 10, -1, nil, true},
		{"overlap equals size", 10, 10, nil, true},
		{"unknown mode", 10, 2, []Option{WithMode("paragraph")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.size, tt.overlap, tt.opts...)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	s, err := New(80, 20)
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("\n\n\n"))
	assert.Equal(t, 0, s.NextID(), "empty input must not consume ids")
}

func TestSplit_OneChunkPerLine(t *testing.T) {
	s, err := New(80, 20)
	require.NoError(t, err)

	chunks := s.Split(lockingCorpus)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Split(lockingCorpus, "\n"), texts(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestSplit_PacksAndOverlaps(t *testing.T) {
	s, err := New(30, 12)
	require.NoError(t, err)

	text := "alpha one\nbravo two\ncharlie three\ndelta four\necho five"
	got := texts(s.Split(text))

	assert.Equal(t, []string{
		"alpha one\nbravo two",
		"bravo two\ncharlie three",
		"delta four\necho five",
	}, got)
	for _, c := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 30)
	}
}

func TestSplit_OversizedUnit(t *testing.T) {
	s, err := New(10, 2)
	require.NoError(t, err)

	got := texts(s.Split("short\nthis line is far too long\nend"))
	assert.Equal(t, []string{"short", "this line is far too long", "end"}, got)
}

func TestSplit_DropsBlankChunks(t *testing.T) {
	s, err := New(5, 0)
	require.NoError(t, err)

	chunks := s.Split("alpha\n   \nbeta")
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"alpha", "beta"}, texts(chunks))
	assert.Equal(t, []int{0, 1}, []int{chunks[0].ID, chunks[1].ID})
	assert.Equal(t, []int{0, 1}, []int{chunks[0].Ordinal, chunks[1].Ordinal})
	assert.Equal(t, 2, s.NextID())

	t.Run("whitespace next to text is kept", func(t *testing.T) {
		s, err := New(20, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha\n   \nbeta"}, texts(s.Split("alpha\n   \nbeta")))
	})

	t.Run("only whitespace", func(t *testing.T) {
		s, err := New(5, 0)
		require.NoError(t, err)
		assert.Empty(t, s.Split("  \n \n   "))
		assert.Zero(t, s.NextID())
	})
}

func TestSplit_CountsRunes(t *testing.T) {
	s, err := New(11, 0)
	require.NoError(t, err)

	// Each unit is 5 runes but more bytes; 5+1+5 fits in 11 runes.
	got := texts(s.Split("héllo\nwörld\nfinal"))
	assert.Equal(t, []string{"héllo\nwörld", "final"}, got)
}

func TestSplit_IDsMonotonicAcrossCalls(t *testing.T) {
	s, err := New(80, 20, WithStartID(10))
	require.NoError(t, err)

	first := s.Split(lockingCorpus)
	second := s.Split("another line\nand one more")

	require.Len(t, first, 3)
	require.Len(t, second, 1)
	assert.Equal(t, []int{10, 11, 12}, []int{first[0].ID, first[1].ID, first[2].ID})
	assert.Equal(t, 13, second[0].ID)
	assert.Equal(t, 0, second[0].Ordinal, "ordinals restart per call")
	assert.Equal(t, 14, s.NextID())
}

func TestSplit_CustomSeparator(t *testing.T) {
	s, err := New(12, 0, WithSeparator("||"))
	require.NoError(t, err)

	got := texts(s.Split("one||two||||three"))
	assert.Equal(t, []string{"one||two", "three"}, got)
}

func TestSplit_SentenceMode(t *testing.T) {
	s, err := New(40, 0, WithMode(ModeSentence))
	require.NoError(t, err)

	got := texts(s.Split("First sentence here. Second one! Is this third? Trailing words"))
	assert.Equal(t, []string{
		"First sentence here. Second one!",
		"Is this third? Trailing words",
	}, got)
}

func TestChunk_SetsSource(t *testing.T) {
	s, err := New(80, 20)
	require.NoError(t, err)

	chunks, err := s.Chunk(domain.Document{ID: "d1", Path: "kb.txt", Content: lockingCorpus})
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, "kb.txt", c.Source)
	}
}

// reconstruct drops the unit-aligned overlap each chunk shares with its predecessor.
func reconstruct(chunks []string, sep string) []string {
	var units []string
	var prev []string
	for _, c := range chunks {
		cur := strings.Split(c, sep)
		shared := 0
		for k := min(len(prev), len(cur)-1); k > 0; k-- {
			if strings.Join(prev[len(prev)-k:], sep) == strings.Join(cur[:k], sep) {
				shared = k
				break
			}
		}
		units = append(units, cur[shared:]...)
		prev = cur
	}
	return units
}

func TestSplit_CoverageAndOverlap(t *testing.T) {
	lines := []string{
		"the quick brown fox", "jumps over", "the lazy dog near the river bank",
		"while", "a heron watches", "from reeds that sway in the wind all afternoon",
		"x", "evening falls", "lights come on across the valley", "done",
	}
	text := strings.Join(lines, "\n")

	for _, cfg := range []struct{ size, overlap int }{{20, 0}, {30, 10}, {45, 20}, {60, 59}} {
		s, err := New(cfg.size, cfg.overlap)
		require.NoError(t, err)

		chunks := texts(s.Split(text))
		require.NotEmpty(t, chunks)
		assert.Equal(t, lines, reconstruct(chunks, "\n"), "size=%d overlap=%d", cfg.size, cfg.overlap)

		for i := 1; i < len(chunks); i++ {
			prev := strings.Split(chunks[i-1], "\n")
			cur := strings.Split(chunks[i], "\n")
			// Shared leading units never exceed the overlap budget.
			for k := min(len(prev), len(cur)-1); k > 0; k-- {
				shared := strings.Join(cur[:k], "\n")
				if strings.Join(prev[len(prev)-k:], "\n") == shared {
					assert.LessOrEqual(t, utf8.RuneCountInString(shared), cfg.overlap)
					break
				}
			}
		}
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"One. Two?! Three", []string{"One.", "Two?!", "Three"}},
		{"No punctuation at all", []string{"No punctuation at all"}},
		{"Wait... what?", []string{"Wait...", "what?"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sentences(tt.in), "input %q", tt.in)
	}
}
