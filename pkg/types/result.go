package types

import "time"

// SearchResult is a single ranked hit returned by the query engine.
type SearchResult struct {
	FilePath   string   // Relative to project root
	Content    string   // Chunk content
	Context    string   // Enclosing symbol or heading path
	Category   Category
	Similarity float64 // Cosine similarity, descending in the result set
	StartLine  int
	EndLine    int
	Summary    string
}

// FileError pairs a file path with the failure that prevented it from being
// indexed during a run.
type FileError struct {
	File    string
	Message string
}

// RunResult summarizes one indexing run. It is returned to the caller and
// never persisted; a run always completes with partial-success semantics
// rather than a single pass/fail.
type RunResult struct {
	FilesSeen    int
	FilesIndexed int
	FilesSkipped int
	TotalChunks  int
	Errors       []FileError
	Duration     time.Duration
}

// AddError records a per-file failure.
func (r *RunResult) AddError(file string, err error) {
	r.Errors = append(r.Errors, FileError{File: file, Message: err.Error()})
}
