package store

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestProject(t *testing.T, s Store, rootPath string) *Project {
	t.Helper()
	project := &Project{RootPath: rootPath, IndexVersion: CurrentSchemaVersion}
	require.NoError(t, s.CreateProject(context.Background(), project))
	require.NotZero(t, project.ID)
	return project
}

func testFile(path string, seed byte) *File {
	return &File{
		FilePath:    path,
		Fingerprint: sha256.Sum256([]byte{seed}),
		ModTime:     time.Now().Truncate(time.Second),
		SizeBytes:   100,
		Category:    "code",
	}
}

func testChunks(n int, vector []float32) []*Chunk {
	chunks := make([]*Chunk, n)
	for i := range chunks {
		chunks[i] = &Chunk{
			Ordinal:   i,
			Content:   "chunk content",
			StartLine: i*10 + 1,
			EndLine:   i*10 + 10,
			Category:  "code",
			Language:  "go",
			Vector:    vector,
		}
	}
	return chunks
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project := newTestProject(t, s, "/tmp/project")

	got, err := s.GetProject(ctx, "/tmp/project")
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)
	assert.Equal(t, CurrentSchemaVersion, got.IndexVersion)

	_, err = s.GetProject(ctx, "/nope")
	assert.ErrorIs(t, err, ErrNotFound)

	project.TotalFiles = 5
	project.TotalChunks = 42
	project.LastIndexedAt = time.Now()
	require.NoError(t, s.UpdateProject(ctx, project))

	got, err = s.GetProject(ctx, "/tmp/project")
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalFiles)
	assert.Equal(t, 42, got.TotalChunks)
	assert.False(t, got.LastIndexedAt.IsZero())
}

func TestTouchFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	file := testFile("a.go", 1)
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, file, testChunks(1, []float32{1})))

	modTime := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.TouchFile(ctx, project.ID, "a.go", modTime, 321))

	got, err := s.GetFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	assert.True(t, got.ModTime.Equal(modTime))
	assert.Equal(t, int64(321), got.SizeBytes)
	assert.Equal(t, file.Fingerprint, got.Fingerprint, "touch must not change the fingerprint")

	assert.ErrorIs(t, s.TouchFile(ctx, project.ID, "missing.go", modTime, 1), ErrNotFound)
}

func TestReplaceFileChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	file := testFile("a.go", 1)
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, file, testChunks(3, []float32{1, 0, 0})))
	require.NotZero(t, file.ID)

	chunks, err := s.ListChunksByFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, []float32{1, 0, 0}, chunks[0].Vector)
	assert.Equal(t, 3, chunks[0].Dimension)

	got, err := s.GetFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	assert.Equal(t, file.Fingerprint, got.Fingerprint)
	assert.Equal(t, 3, got.ChunkCount)
}

func TestReplaceFileChunksSwapsGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	file := testFile("a.go", 1)
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, file, testChunks(5, []float32{1, 0})))

	// Second generation has fewer chunks; no stale leftovers may remain.
	updated := testFile("a.go", 2)
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, updated, testChunks(2, []float32{0, 1})))

	chunks, err := s.ListChunksByFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.Equal(t, []float32{0, 1}, chunk.Vector)
	}

	got, err := s.GetFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	assert.Equal(t, updated.Fingerprint, got.Fingerprint)
	assert.Equal(t, 2, got.ChunkCount)

	count, err := s.CountChunks(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteFileCascadesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), testChunks(3, []float32{1})))
	require.NoError(t, s.DeleteFile(ctx, project.ID, "a.go"))

	_, err := s.GetFile(ctx, project.ID, "a.go")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := s.CountChunks(ctx, project.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListFilesOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("b.go", 1), nil))
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 2), nil))

	files, err := s.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].FilePath)
	assert.Equal(t, "b.go", files[1].FilePath)
}

func TestQueryRanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	near := []*Chunk{{Ordinal: 0, Content: "near", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{1, 0, 0}}}
	far := []*Chunk{{Ordinal: 0, Content: "far", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{0, 1, 0}}}
	mid := []*Chunk{{Ordinal: 0, Content: "mid", StartLine: 1, EndLine: 1, Category: "documentation", Vector: []float32{1, 1, 0}}}

	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("near.go", 1), near))
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("far.go", 2), far))
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("mid.md", 3), mid))

	results, err := s.Query(ctx, project.ID, []float32{1, 0, 0}, 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Chunk.Content)
	assert.Equal(t, "mid", results[1].Chunk.Content)
	assert.Equal(t, "far", results[2].Chunk.Content)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestQueryMinSimilarityFloor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	chunks := []*Chunk{
		{Ordinal: 0, Content: "aligned", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{1, 0}},
		{Ordinal: 1, Content: "orthogonal", StartLine: 2, EndLine: 2, Category: "code", Vector: []float32{0, 1}},
	}
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), chunks))

	results, err := s.Query(ctx, project.ID, []float32{1, 0}, 10, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Chunk.Content)
}

func TestQueryCategoryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	code := []*Chunk{{Ordinal: 0, Content: "code chunk", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{1, 0}}}
	docs := []*Chunk{{Ordinal: 0, Content: "doc chunk", StartLine: 1, EndLine: 1, Category: "documentation", Vector: []float32{1, 0}}}
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), code))
	docFile := testFile("b.md", 2)
	docFile.Category = "documentation"
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, docFile, docs))

	results, err := s.Query(ctx, project.ID, []float32{1, 0}, 10, 0, &Filters{Category: "documentation"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc chunk", results[0].Chunk.Content)
}

func TestQueryFilePatternFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("internal/a.go", 1),
		[]*Chunk{{Ordinal: 0, Content: "internal", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{1, 0}}}))
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("cmd/b.go", 2),
		[]*Chunk{{Ordinal: 0, Content: "cmd", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{1, 0}}}))

	results, err := s.Query(ctx, project.ID, []float32{1, 0}, 10, 0, &Filters{FilePattern: "internal/*"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "internal/a.go", results[0].FilePath)
}

func TestQueryLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), testChunks(10, []float32{1, 0})))

	results, err := s.Query(ctx, project.ID, []float32{1, 0}, 3, 0, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = s.Query(ctx, project.ID, []float32{1, 0}, 0, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryDeterministicTieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	// Identical vectors everywhere: order must come from path then ordinal.
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("b.go", 1), testChunks(2, []float32{1, 0})))
	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 2), testChunks(2, []float32{1, 0})))

	for i := 0; i < 3; i++ {
		results, err := s.Query(ctx, project.ID, []float32{1, 0}, 10, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, "a.go", results[0].FilePath)
		assert.Equal(t, 0, results[0].Chunk.Ordinal)
		assert.Equal(t, "a.go", results[1].FilePath)
		assert.Equal(t, 1, results[1].Chunk.Ordinal)
		assert.Equal(t, "b.go", results[2].FilePath)
		assert.Equal(t, "b.go", results[3].FilePath)
	}
}

func TestGetStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project := newTestProject(t, s, "/tmp/project")

	require.NoError(t, s.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), testChunks(4, []float32{1})))

	status, err := s.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 4, status.ChunksCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.VectorsStored)

	_, err = s.GetStatus(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
