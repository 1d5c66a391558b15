package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
}

func TestMemoryStoreProjectLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))
	require.NotZero(t, project.ID)

	got, err := m.GetProject(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)

	_, err = m.GetProject(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	project.TotalFiles = 3
	require.NoError(t, m.UpdateProject(ctx, project))
	got, err = m.GetProject(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalFiles)
}

func TestMemoryStoreReplaceFileChunks(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))

	file := testFile("a.go", 1)
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, file, testChunks(3, []float32{1, 0})))

	chunks, err := m.ListChunksByFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	// Replacement discards the previous generation entirely.
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 2), testChunks(1, []float32{0, 1})))
	chunks, err = m.ListChunksByFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []float32{0, 1}, chunks[0].Vector)

	count, err := m.CountChunks(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStoreTouchFile(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), testChunks(1, []float32{1})))

	modTime := time.Now().Add(time.Hour)
	require.NoError(t, m.TouchFile(ctx, project.ID, "a.go", modTime, 321))

	file, err := m.GetFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	assert.True(t, file.ModTime.Equal(modTime))
	assert.Equal(t, int64(321), file.SizeBytes)

	assert.ErrorIs(t, m.TouchFile(ctx, project.ID, "missing.go", modTime, 1), ErrNotFound)
}

func TestMemoryStoreDeleteFile(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))

	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), testChunks(2, []float32{1})))
	require.NoError(t, m.DeleteFile(ctx, project.ID, "a.go"))

	_, err := m.GetFile(ctx, project.ID, "a.go")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := m.CountChunks(ctx, project.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStoreQueryOrderingMatchesSQLite(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))

	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("b.go", 1), testChunks(2, []float32{1, 0})))
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 2), testChunks(2, []float32{1, 0})))

	results, err := m.Query(ctx, project.ID, []float32{1, 0}, 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "a.go", results[0].FilePath)
	assert.Equal(t, 0, results[0].Chunk.Ordinal)
	assert.Equal(t, "b.go", results[2].FilePath)
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))

	code := []*Chunk{{Ordinal: 0, Content: "code", StartLine: 1, EndLine: 1, Category: "code", Vector: []float32{1, 0}}}
	docs := []*Chunk{{Ordinal: 0, Content: "docs", StartLine: 1, EndLine: 1, Category: "documentation", Vector: []float32{1, 0}}}
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), code))
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("docs/b.md", 2), docs))

	results, err := m.Query(ctx, project.ID, []float32{1, 0}, 10, 0, &Filters{Category: "code"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "code", results[0].Chunk.Content)

	results, err = m.Query(ctx, project.ID, []float32{1, 0}, 10, 0, &Filters{FilePattern: "docs/*"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "docs", results[0].Chunk.Content)
}

func TestMemoryStoreGetStatus(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	project := &Project{RootPath: "/p"}
	require.NoError(t, m.CreateProject(ctx, project))
	require.NoError(t, m.ReplaceFileChunks(ctx, project.ID, testFile("a.go", 1), testChunks(2, []float32{1})))

	status, err := m.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 2, status.ChunksCount)
	assert.True(t, status.Health.VectorsStored)

	_, err = m.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
