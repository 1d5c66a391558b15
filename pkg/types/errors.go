package types

import "errors"

var (
	// ErrUnsupportedFile indicates a file whose extension is not indexable.
	// Such files are skipped and counted, never treated as run errors.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrFileNotFound indicates an explicitly requested path that does not
	// exist. The path is skipped and recorded; the run continues.
	ErrFileNotFound = errors.New("file not found")

	// ErrServiceUnavailable indicates the embedding service or vector store
	// is unreachable at the connection level. Unlike per-file failures it
	// aborts the whole run.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrEmptyQuery is returned for empty or whitespace-only search queries.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrIndexInProgress is returned when a run is requested for a project
	// that already has one in flight.
	ErrIndexInProgress = errors.New("indexing already in progress for this project")
)
