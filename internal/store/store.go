// Package store persists chunks, vectors and file index records, and serves
// nearest-neighbor queries over them. The engine is written against the
// Store interface; SQLite and in-memory backends implement it.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence boundary for the indexing engine.
//
// ReplaceFileChunks is the generation swap: it removes every chunk of the
// file and inserts the new set together with the updated file index record
// as one atomic unit, so readers never observe two fingerprint generations
// of the same file.
type Store interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File index records
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)
	DeleteFile(ctx context.Context, projectID int64, filePath string) error

	// TouchFile refreshes the stored mtime and size of a file whose content
	// was found unchanged, so the change detector's fast path applies on the
	// next run without re-hashing.
	TouchFile(ctx context.Context, projectID int64, filePath string, modTime time.Time, sizeBytes int64) error

	// Chunk operations
	ReplaceFileChunks(ctx context.Context, projectID int64, file *File, chunks []*Chunk) error
	DeleteChunksByFile(ctx context.Context, projectID int64, filePath string) error
	ListChunksByFile(ctx context.Context, projectID int64, filePath string) ([]*Chunk, error)
	CountChunks(ctx context.Context, projectID int64) (int, error)

	// Query returns the limit nearest chunks by cosine similarity, excluding
	// anything below minSimilarity, restricted by optional filters, ordered
	// descending by similarity with ties broken by file path then ordinal.
	Query(ctx context.Context, projectID int64, vector []float32, limit int, minSimilarity float64, filters *Filters) ([]Result, error)

	// Status
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	Close() error
}

// Project represents an indexed project root.
type Project struct {
	ID            int64
	RootPath      string
	TotalFiles    int
	TotalChunks   int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File is the index record for one source file: the fingerprint recorded at
// last index time plus bookkeeping the change detector needs.
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	Fingerprint   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	Category      string
	ChunkCount    int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is the stored form of a chunk together with its embedding vector.
type Chunk struct {
	ID         int64
	FileID     int64
	Ordinal    int
	Content    string
	StartLine  int
	EndLine    int
	Category   string
	Language   string
	Context    string
	Summary    string
	TokenCount int
	Vector     []float32
	Dimension  int
	CreatedAt  time.Time
}

// Filters narrows query results by metadata.
type Filters struct {
	Category    string // "code" or "documentation"; empty matches both
	FilePattern string // GLOB pattern on the relative file path
}

// Result is one query hit.
type Result struct {
	Chunk      *Chunk
	FilePath   string
	Similarity float64
}

// ProjectStatus contains statistics about an indexed project.
type ProjectStatus struct {
	Project     *Project
	FilesCount  int
	ChunksCount int
	IndexSizeMB float64
	Health      HealthStatus
}

// HealthStatus reports whether the backing store is usable.
type HealthStatus struct {
	DatabaseAccessible bool
	VectorsStored      bool
}
