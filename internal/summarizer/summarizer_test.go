package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semdex/semdex-mcp/pkg/types"
)

func TestSummarizeEmptyContent(t *testing.T) {
	s := NewFrequency(2)
	assert.Equal(t, "", s.Summarize("", types.CategoryDocumentation))
	assert.Equal(t, "", s.Summarize("   \n\t", types.CategoryDocumentation))
}

func TestSummarizeLimitsSentences(t *testing.T) {
	s := NewFrequency(2)
	text := "Indexing scans the project tree. Indexing skips unchanged files. " +
		"The walker excludes vendor directories. Chunks overlap at boundaries. " +
		"Indexing is incremental by design of the fingerprint store."

	summary := s.Summarize(text, types.CategoryDocumentation)
	require.NotEmpty(t, summary)
	assert.LessOrEqual(t, strings.Count(summary, "."), 2)
}

func TestSummarizePrefersFrequentTopics(t *testing.T) {
	s := NewFrequency(1)
	text := "The embedding cache stores vectors by hash. " +
		"The embedding cache evicts old vectors. " +
		"Bananas are yellow. " +
		"The embedding cache returns copies of vectors."

	summary := s.Summarize(text, types.CategoryDocumentation)
	assert.Contains(t, strings.ToLower(summary), "cache")
	assert.NotContains(t, strings.ToLower(summary), "bananas")
}

func TestSummarizePreservesOriginalOrder(t *testing.T) {
	s := NewFrequency(3)
	text := "First the walker runs. Then the chunker splits files. Finally vectors are stored."

	summary := s.Summarize(text, types.CategoryDocumentation)
	first := strings.Index(summary, "walker")
	last := strings.Index(summary, "stored")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, last, 0)
	assert.Less(t, first, last)
}

func TestSummarizeCodeUsesComments(t *testing.T) {
	s := NewFrequency(2)
	code := "// Process reads the queue and dispatches each message.\n" +
		"func Process(q *Queue) error {\n" +
		"\tfor m := range q.C {\n" +
		"\t\tdispatch(m)\n" +
		"\t}\n" +
		"\treturn nil\n" +
		"}\n"

	summary := s.Summarize(code, types.CategoryCode)
	assert.Contains(t, summary, "dispatches each message")
	assert.NotContains(t, summary, "func Process")
}

func TestSummarizeCodeWithoutComments(t *testing.T) {
	s := NewFrequency(2)
	code := "func add(a, b int) int {\n\treturn a + b\n}\n"
	assert.Equal(t, "", s.Summarize(code, types.CategoryCode))
}

func TestSummarizeNoSentencePunctuation(t *testing.T) {
	s := NewFrequency(2)
	summary := s.Summarize("just a fragment without punctuation", types.CategoryDocumentation)
	assert.Equal(t, "just a fragment without punctuation", summary)
}

func TestCommentText(t *testing.T) {
	code := "// line comment\n" +
		"x := 1 // trailing, not extracted\n" +
		"# hash comment\n" +
		"-- sql comment\n" +
		"/* block one */\n" +
		"/* spans\nlines */\n"

	text := commentText(code)
	assert.Contains(t, text, "line comment")
	assert.Contains(t, text, "hash comment")
	assert.Contains(t, text, "sql comment")
	assert.Contains(t, text, "block one")
	assert.Contains(t, text, "spans")
	assert.NotContains(t, text, "x := 1")
}
