package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance, applying migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Project operations

func (s *SQLiteStore) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (root_path, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		project.RootPath, project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	query := `
		SELECT id, root_path, total_files, total_chunks, index_version,
		       last_indexed_at, created_at, updated_at
		FROM projects
		WHERE root_path = ?
	`
	var project Project
	var lastIndexedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, rootPath).Scan(
		&project.ID, &project.RootPath, &project.TotalFiles, &project.TotalChunks,
		&project.IndexVersion, &lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, project *Project) error {
	query := `
		UPDATE projects
		SET total_files = ?, total_chunks = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		project.TotalFiles, project.TotalChunks, project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

// File index record operations

func upsertFile(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (project_id, file_path, fingerprint, mod_time, size_bytes, category, chunk_count, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			category = excluded.category,
			chunk_count = excluded.chunk_count,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.Fingerprint[:], file.ModTime,
		file.SizeBytes, file.Category, file.ChunkCount, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func scanFile(scan func(dest ...interface{}) error) (*File, error) {
	var file File
	var fingerprint []byte
	var lastIndexedAt sql.NullTime
	err := scan(
		&file.ID, &file.ProjectID, &file.FilePath, &fingerprint,
		&file.ModTime, &file.SizeBytes, &file.Category, &file.ChunkCount,
		&lastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(file.Fingerprint[:], fingerprint)
	if lastIndexedAt.Valid {
		file.LastIndexedAt = lastIndexedAt.Time
	}
	return &file, nil
}

const fileColumns = `id, project_id, file_path, fingerprint, mod_time, size_bytes, category, chunk_count, last_indexed_at, created_at, updated_at`

func (s *SQLiteStore) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? AND file_path = ?`
	row := s.db.QueryRowContext(ctx, query, projectID, filePath)
	file, err := scanFile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? ORDER BY file_path`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) TouchFile(ctx context.Context, projectID int64, filePath string, modTime time.Time, sizeBytes int64) error {
	query := `
		UPDATE files
		SET mod_time = ?, size_bytes = ?, updated_at = ?
		WHERE project_id = ? AND file_path = ?
	`
	result, err := s.db.ExecContext(ctx, query, modTime, sizeBytes, time.Now(), projectID, filePath)
	if err != nil {
		return fmt.Errorf("failed to touch file: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, projectID int64, filePath string) error {
	// Chunks cascade with the file row.
	query := `DELETE FROM files WHERE project_id = ? AND file_path = ?`
	_, err := s.db.ExecContext(ctx, query, projectID, filePath)
	return err
}

// Chunk operations

// ReplaceFileChunks swaps a file's chunk generation atomically: within one
// transaction the old chunks are deleted, the new set is inserted, and the
// file index record is upserted with the new fingerprint.
func (s *SQLiteStore) ReplaceFileChunks(ctx context.Context, projectID int64, file *File, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	file.ProjectID = projectID
	file.ChunkCount = len(chunks)
	if err := upsertFile(ctx, tx, file); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, file.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	insert := `
		INSERT INTO chunks (file_id, ordinal, content, start_line, end_line, category, language, context, summary, token_count, vector, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, chunk := range chunks {
		chunk.FileID = file.ID
		chunk.Dimension = len(chunk.Vector)
		result, err := tx.ExecContext(ctx, insert,
			chunk.FileID, chunk.Ordinal, chunk.Content, chunk.StartLine, chunk.EndLine,
			chunk.Category, chunk.Language, chunk.Context, chunk.Summary,
			chunk.TokenCount, serializeVector(chunk.Vector), chunk.Dimension, now)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Ordinal, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			chunk.ID = id
		}
		chunk.CreatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteChunksByFile(ctx context.Context, projectID int64, filePath string) error {
	query := `
		DELETE FROM chunks
		WHERE file_id IN (SELECT id FROM files WHERE project_id = ? AND file_path = ?)
	`
	_, err := s.db.ExecContext(ctx, query, projectID, filePath)
	return err
}

const chunkColumns = `c.id, c.file_id, c.ordinal, c.content, c.start_line, c.end_line, c.category, c.language, c.context, c.summary, c.token_count, c.vector, c.dimension, c.created_at`

func scanChunk(scan func(dest ...interface{}) error) (*Chunk, error) {
	var chunk Chunk
	var language, context, summary sql.NullString
	var vectorBlob []byte
	err := scan(
		&chunk.ID, &chunk.FileID, &chunk.Ordinal, &chunk.Content,
		&chunk.StartLine, &chunk.EndLine, &chunk.Category,
		&language, &context, &summary, &chunk.TokenCount,
		&vectorBlob, &chunk.Dimension, &chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	chunk.Language = language.String
	chunk.Context = context.String
	chunk.Summary = summary.String
	chunk.Vector = deserializeVector(vectorBlob)
	return &chunk, nil
}

func (s *SQLiteStore) ListChunksByFile(ctx context.Context, projectID int64, filePath string) ([]*Chunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.project_id = ? AND f.file_path = ?
		ORDER BY c.ordinal
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) CountChunks(ctx context.Context, projectID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.project_id = ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Query performs nearest-neighbor search over the project's chunks.
func (s *SQLiteStore) Query(ctx context.Context, projectID int64, vector []float32, limit int, minSimilarity float64, filters *Filters) ([]Result, error) {
	return queryVectors(ctx, s.db, projectID, vector, limit, minSimilarity, filters)
}

// GetStatus returns statistics about an indexed project.
func (s *SQLiteStore) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	var project Project
	var lastIndexedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, root_path, total_files, total_chunks, index_version,
		       last_indexed_at, created_at, updated_at
		FROM projects WHERE id = ?
	`, projectID).Scan(
		&project.ID, &project.RootPath, &project.TotalFiles, &project.TotalChunks,
		&project.IndexVersion, &lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}

	status := &ProjectStatus{Project: &project}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE project_id = ?`, projectID).Scan(&status.FilesCount); err != nil {
		return nil, err
	}
	count, err := s.CountChunks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	status.ChunksCount = count

	if s.path != "" && s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			status.IndexSizeMB = float64(info.Size()) / (1024 * 1024)
		}
	}

	status.Health = HealthStatus{
		DatabaseAccessible: s.db.PingContext(ctx) == nil,
		VectorsStored:      count > 0,
	}
	return status, nil
}
