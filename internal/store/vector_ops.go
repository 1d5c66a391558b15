package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// queryVectors performs nearest-neighbor search using cosine similarity.
func queryVectors(ctx context.Context, db *sql.DB, projectID int64, queryVector []float32, limit int, minSimilarity float64, filters *Filters) ([]Result, error) {
	if limit <= 0 {
		return []Result{}, nil
	}
	// Use SQL-level distance computation when the vector extension is loaded;
	// otherwise rank in Go.
	if VectorExtensionAvailable {
		return queryVectorsOptimized(ctx, db, projectID, queryVector, limit, minSimilarity, filters)
	}
	return queryVectorsFallback(ctx, db, projectID, queryVector, limit, minSimilarity, filters)
}

// queryVectorsOptimized pushes the distance computation into SQLite via the
// sqlite-vec extension. vec_distance_cosine returns distance (lower is
// better); similarity is 1 - distance.
func queryVectorsOptimized(ctx context.Context, db *sql.DB, projectID int64, queryVector []float32, limit int, minSimilarity float64, filters *Filters) ([]Result, error) {
	blob := serializeVector(queryVector)

	query := `
		SELECT ` + chunkColumns + `, f.file_path,
		       1.0 - vec_distance_cosine(c.vector, ?) AS similarity
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.project_id = ?
	`
	args := []interface{}{blob, projectID}
	query, args = applyQueryFilters(query, args, filters)

	if minSimilarity > 0 {
		query += " AND (1.0 - vec_distance_cosine(c.vector, ?)) >= ?"
		args = append(args, blob, minSimilarity)
	}

	query += " ORDER BY similarity DESC, f.file_path ASC, c.ordinal ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Result, 0, limit)
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// queryVectorsFallback loads candidate vectors and ranks them in Go. Used by
// purego builds where no SQL vector extension is available.
func queryVectorsFallback(ctx context.Context, db *sql.DB, projectID int64, queryVector []float32, limit int, minSimilarity float64, filters *Filters) ([]Result, error) {
	query := `
		SELECT ` + chunkColumns + `, f.file_path
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.project_id = ?
	`
	args := []interface{}{projectID}
	query, args = applyQueryFilters(query, args, filters)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Result, 0, 256)
	for rows.Next() {
		chunk, filePath, err := scanChunkWithPath(rows)
		if err != nil {
			return nil, err
		}
		if len(chunk.Vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}
		similarity := cosineSimilarity(queryVector, chunk.Vector)
		if minSimilarity > 0 && similarity < minSimilarity {
			continue
		}
		candidates = append(candidates, Result{Chunk: chunk, FilePath: filePath, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortResults(candidates)
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// applyQueryFilters adds WHERE clause filters for metadata narrowing.
func applyQueryFilters(query string, args []interface{}, filters *Filters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}
	if filters.Category != "" {
		query += " AND c.category = ?"
		args = append(args, filters.Category)
	}
	if filters.FilePattern != "" {
		query += " AND f.file_path GLOB ?"
		args = append(args, filters.FilePattern)
	}
	return query, args
}

func scanChunkWithPath(rows *sql.Rows) (*Chunk, string, error) {
	var chunk Chunk
	var language, context, summary sql.NullString
	var vectorBlob []byte
	var filePath string
	err := rows.Scan(
		&chunk.ID, &chunk.FileID, &chunk.Ordinal, &chunk.Content,
		&chunk.StartLine, &chunk.EndLine, &chunk.Category,
		&language, &context, &summary, &chunk.TokenCount,
		&vectorBlob, &chunk.Dimension, &chunk.CreatedAt,
		&filePath,
	)
	if err != nil {
		return nil, "", err
	}
	chunk.Language = language.String
	chunk.Context = context.String
	chunk.Summary = summary.String
	chunk.Vector = deserializeVector(vectorBlob)
	return &chunk, filePath, nil
}

func scanResult(rows *sql.Rows) (Result, error) {
	var chunk Chunk
	var language, context, summary sql.NullString
	var vectorBlob []byte
	var result Result
	err := rows.Scan(
		&chunk.ID, &chunk.FileID, &chunk.Ordinal, &chunk.Content,
		&chunk.StartLine, &chunk.EndLine, &chunk.Category,
		&language, &context, &summary, &chunk.TokenCount,
		&vectorBlob, &chunk.Dimension, &chunk.CreatedAt,
		&result.FilePath, &result.Similarity,
	)
	if err != nil {
		return Result{}, err
	}
	chunk.Language = language.String
	chunk.Context = context.String
	chunk.Summary = summary.String
	chunk.Vector = deserializeVector(vectorBlob)
	result.Chunk = &chunk
	return result, nil
}

// SortResults orders results by similarity descending, ties broken by file
// path then chunk ordinal, so identical inputs always rank identically.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].FilePath != results[j].FilePath {
			return results[i].FilePath < results[j].FilePath
		}
		return results[i].Chunk.Ordinal < results[j].Chunk.Ordinal
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
