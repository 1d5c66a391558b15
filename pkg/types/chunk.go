package types

import (
	"crypto/sha256"
	"errors"
)

// Category classifies indexed content for chunking rules and search filters.
type Category string

const (
	CategoryCode          Category = "code"
	CategoryDocumentation Category = "documentation"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	return c == CategoryCode || c == CategoryDocumentation
}

// Chunk is the atomic indexed unit: a bounded span of a file's text together
// with its location, metadata and (once embedded) its vector.
//
// Chunk identity is (project, file path, ordinal). The ordinal is assigned by
// the chunker in file order and is stable across re-indexing runs of the same
// content, which makes replace-by-file well defined.
type Chunk struct {
	// Identity
	Ordinal int

	// Content
	Content   string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Vector    []float32

	// Metadata
	Category Category
	Language string // language for code, document type for prose
	Context  string // enclosing symbol name (code) or heading path (prose)
	Summary  string

	TokenCount int
}

// EstimateTokenCount estimates the token count using the chars/4 heuristic
// and stores it on the chunk.
func (c *Chunk) EstimateTokenCount() int {
	c.TokenCount = len(c.Content) / 4
	return c.TokenCount
}

// ContentHash returns the SHA-256 hash of the chunk content. Used as the
// embedding cache key.
func (c *Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Content))
}

// Validate checks structural invariants of the chunk.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if c.Ordinal < 0 {
		return errors.New("ordinal must be non-negative")
	}
	if !c.Category.Valid() {
		return errors.New("invalid chunk category")
	}
	return nil
}
