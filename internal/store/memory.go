package store

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store using brute-force cosine similarity.
// It honors the same contract as the SQLite backend and is the substitute
// adapter used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	projects map[string]*Project          // keyed by root path
	files    map[int64]map[string]*File   // project ID -> file path -> record
	chunks   map[int64]map[string][]*Chunk // project ID -> file path -> chunks
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*Project),
		files:    make(map[int64]map[string]*File),
		chunks:   make(map[int64]map[string][]*Chunk),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateProject(ctx context.Context, project *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	project.ID = m.id()
	project.CreatedAt = now
	project.UpdatedAt = now
	cp := *project
	m.projects[project.RootPath] = &cp
	m.files[project.ID] = make(map[string]*File)
	m.chunks[project.ID] = make(map[string][]*Chunk)
	return nil
}

func (m *MemoryStore) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	project, ok := m.projects[rootPath]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *project
	return &cp, nil
}

func (m *MemoryStore) UpdateProject(ctx context.Context, project *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.projects[project.RootPath]
	if !ok {
		return ErrNotFound
	}
	stored.TotalFiles = project.TotalFiles
	stored.TotalChunks = project.TotalChunks
	stored.LastIndexedAt = project.LastIndexedAt
	stored.UpdatedAt = time.Now()
	project.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemoryStore) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[projectID][filePath]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *file
	return &cp, nil
}

func (m *MemoryStore) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]*File, 0, len(m.files[projectID]))
	for _, file := range m.files[projectID] {
		cp := *file
		files = append(files, &cp)
	}
	return files, nil
}

func (m *MemoryStore) TouchFile(ctx context.Context, projectID int64, filePath string, modTime time.Time, sizeBytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[projectID][filePath]
	if !ok {
		return ErrNotFound
	}
	file.ModTime = modTime
	file.SizeBytes = sizeBytes
	file.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteFile(ctx context.Context, projectID int64, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files[projectID], filePath)
	delete(m.chunks[projectID], filePath)
	return nil
}

func (m *MemoryStore) ReplaceFileChunks(ctx context.Context, projectID int64, file *File, chunks []*Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[projectID] == nil {
		m.files[projectID] = make(map[string]*File)
		m.chunks[projectID] = make(map[string][]*Chunk)
	}
	now := time.Now()

	stored, ok := m.files[projectID][file.FilePath]
	if !ok {
		file.ID = m.id()
		file.CreatedAt = now
	} else {
		file.ID = stored.ID
		file.CreatedAt = stored.CreatedAt
	}
	file.ProjectID = projectID
	file.ChunkCount = len(chunks)
	file.LastIndexedAt = now
	file.UpdatedAt = now
	fileCopy := *file
	m.files[projectID][file.FilePath] = &fileCopy

	replacement := make([]*Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.ID = m.id()
		chunk.FileID = file.ID
		chunk.Dimension = len(chunk.Vector)
		chunk.CreatedAt = now
		cp := *chunk
		cp.Vector = append([]float32(nil), chunk.Vector...)
		replacement[i] = &cp
	}
	m.chunks[projectID][file.FilePath] = replacement
	return nil
}

func (m *MemoryStore) DeleteChunksByFile(ctx context.Context, projectID int64, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks[projectID], filePath)
	if file, ok := m.files[projectID][filePath]; ok {
		file.ChunkCount = 0
	}
	return nil
}

func (m *MemoryStore) ListChunksByFile(ctx context.Context, projectID int64, filePath string) ([]*Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.chunks[projectID][filePath]
	chunks := make([]*Chunk, len(stored))
	for i, chunk := range stored {
		cp := *chunk
		chunks[i] = &cp
	}
	return chunks, nil
}

func (m *MemoryStore) CountChunks(ctx context.Context, projectID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, chunks := range m.chunks[projectID] {
		count += len(chunks)
	}
	return count, nil
}

func (m *MemoryStore) Query(ctx context.Context, projectID int64, vector []float32, limit int, minSimilarity float64, filters *Filters) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []Result{}, nil
	}

	candidates := make([]Result, 0, 64)
	for filePath, chunks := range m.chunks[projectID] {
		if filters != nil && filters.FilePattern != "" {
			if ok, _ := filepath.Match(filters.FilePattern, filePath); !ok {
				continue
			}
		}
		for _, chunk := range chunks {
			if filters != nil && filters.Category != "" && chunk.Category != filters.Category {
				continue
			}
			if len(chunk.Vector) != len(vector) {
				continue
			}
			similarity := cosineSimilarity(vector, chunk.Vector)
			if minSimilarity > 0 && similarity < minSimilarity {
				continue
			}
			cp := *chunk
			candidates = append(candidates, Result{Chunk: &cp, FilePath: filePath, Similarity: similarity})
		}
	}

	SortResults(candidates)
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

func (m *MemoryStore) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var project *Project
	for _, p := range m.projects {
		if p.ID == projectID {
			cp := *p
			project = &cp
			break
		}
	}
	if project == nil {
		return nil, ErrNotFound
	}

	count := 0
	for _, chunks := range m.chunks[projectID] {
		count += len(chunks)
	}
	return &ProjectStatus{
		Project:     project,
		FilesCount:  len(m.files[projectID]),
		ChunksCount: count,
		Health: HealthStatus{
			DatabaseAccessible: true,
			VectorsStored:      count > 0,
		},
	}, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
