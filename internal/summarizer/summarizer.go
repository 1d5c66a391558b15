// Package summarizer produces short extractive summaries for indexed chunks.
// Summaries ride along with search results so callers can show a preview
// without fetching the whole chunk.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/semdex/semdex-mcp/pkg/types"
)

// Summarizer condenses chunk content to a few representative sentences.
type Summarizer interface {
	Summarize(content string, category types.Category) string
}

// Frequency ranks sentences by normalized word frequency with stopwords
// filtered, then emits the top sentences in original order. For code chunks
// it summarizes comment and doc lines only; the code itself is poor sentence
// material.
type Frequency struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	sentSplit    *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewFrequency creates a frequency-based summarizer emitting at most
// maxSentences sentences. Values <= 0 default to 2.
func NewFrequency(maxSentences int) *Frequency {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &Frequency{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:'\p{L}+)*`),
		sentSplit:    regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:    stopwords(),
	}
}

// Summarize returns a short extractive summary, or "" when the content has
// no usable prose.
func (f *Frequency) Summarize(content string, category types.Category) string {
	if category == types.CategoryCode {
		content = commentText(content)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	sentences := f.sentSplit.FindAllString(content, -1)
	if len(sentences) == 0 {
		return firstLine(content)
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range f.tokens(sent) {
			if _, ok := f.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := f.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			if v, ok := freq[tok]; ok {
				score += v
			}
		}
		// Length normalization so long sentences do not dominate.
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = scored{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	limit := f.maxSentences
	if limit > len(scores) {
		limit = len(scores)
	}
	selected := make([]int, limit)
	for i := 0; i < limit; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	parts := make([]string, 0, limit)
	for _, idx := range selected {
		parts = append(parts, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(parts, " ")
}

func (f *Frequency) tokens(text string) []string {
	return f.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// commentText extracts comment lines from source code. Line comments across
// the supported languages start with //, #, -- or are part of block comments.
func commentText(content string) string {
	var out []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if inBlock {
			end := strings.Index(trimmed, "*/")
			if end >= 0 {
				inBlock = false
				trimmed = trimmed[:end]
			}
			out = append(out, strings.TrimSpace(strings.TrimPrefix(trimmed, "*")))
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "//"):
			out = append(out, strings.TrimSpace(trimmed[2:]))
		case strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#!"):
			out = append(out, strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		case strings.HasPrefix(trimmed, "--"):
			out = append(out, strings.TrimSpace(trimmed[2:]))
		case strings.HasPrefix(trimmed, "/*"):
			rest := trimmed[2:]
			if end := strings.Index(rest, "*/"); end >= 0 {
				out = append(out, strings.TrimSpace(rest[:end]))
			} else {
				inBlock = true
				out = append(out, strings.TrimSpace(rest))
			}
		}
	}
	return strings.Join(out, " ")
}

func firstLine(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		content = content[:idx]
	}
	const maxLen = 160
	if len(content) > maxLen {
		content = content[:maxLen]
	}
	return strings.TrimSpace(content)
}

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again",
		"further", "than", "so", "such", "into", "about", "between",
		"through", "during", "before", "after", "above", "below", "out",
		"off", "own", "same", "too", "very", "can", "will", "just",
		"should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
