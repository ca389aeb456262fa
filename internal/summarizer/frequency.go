package summarizer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
)

var _ domain.Generator = (*FrequencySummarizer)(nil)

// NoAnswer is returned by Generate when the context cannot answer the question.
const NoAnswer = "I don't know."

// DefaultMaxSentences is used when a non-positive limit is given.
const DefaultMaxSentences = 5

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
// As a Generator it answers offline by extracting the context sentences that
// best match the question.
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxAnswer    int
}

// NewFrequencySummarizer creates a frequency-based sentence ranker. maxAnswer
// bounds the sentences in a generated answer.
func NewFrequencySummarizer(maxAnswer int) *FrequencySummarizer {
	if maxAnswer <= 0 {
		maxAnswer = 2
	}
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
		maxAnswer:    maxAnswer,
	}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	scores := s.frequencyScores(sentences)
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	return s.pick(sentences, order, scores, maxSentences), nil
}

// Generate answers from the prompt context alone: sentences sharing terms with
// the question are ranked by overlap, then frequency, and returned in source order.
func (s *FrequencySummarizer) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	query := make(map[string]struct{})
	for _, tok := range s.contentTokens(prompt.Question) {
		query[tok] = struct{}{}
	}

	// Overlapping chunks repeat sentences.
	seen := make(map[string]struct{})
	var sentences []string
	for _, text := range prompt.Context {
		for _, sent := range chunker.Sentences(text) {
			if _, ok := seen[sent]; ok {
				continue
			}
			seen[sent] = struct{}{}
			sentences = append(sentences, sent)
		}
	}

	scores := s.frequencyScores(sentences)
	var candidates []int
	for i, sent := range sentences {
		matched := make(map[string]struct{})
		for _, tok := range s.contentTokens(sent) {
			if _, ok := query[tok]; ok {
				matched[tok] = struct{}{}
			}
		}
		if len(matched) == 0 {
			continue
		}
		scores[i] += float64(len(matched))
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return NoAnswer, nil
	}
	return s.pick(sentences, candidates, scores, s.maxAnswer), nil
}

// frequencyScores scores each sentence by the normalized frequency of its
// words across all sentences, damped by sentence length.
func (s *FrequencySummarizer) frequencyScores(sentences []string) []float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.contentTokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	scores := make([]float64, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		for _, tok := range toks {
			scores[i] += freq[tok]
		}
		if l := float64(len(toks)); l > 0 {
			scores[i] /= math.Sqrt(l)
		}
	}
	return scores
}

// pick keeps the n best candidates and joins them in original order.
func (s *FrequencySummarizer) pick(sentences []string, candidates []int, scores []float64, n int) string {
	ranked := append([]int(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })
	if n > len(ranked) {
		n = len(ranked)
	}
	selected := ranked[:n]
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func (s *FrequencySummarizer) contentTokens(text string) []string {
	toks := s.tokens(text)
	out := toks[:0]
	for _, t := range toks {
		if _, ok := s.stopwords[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
