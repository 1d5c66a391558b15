// Package indexer coordinates the indexing pipeline: discover files, detect
// changes, chunk, summarize, embed, and swap chunk generations in the store.
//
// A run has partial-success semantics: per-file failures are recorded on the
// RunResult and the run continues. Only an unreachable embedding service or
// store aborts the run as a whole.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semdex/semdex-mcp/internal/chunker"
	"github.com/semdex/semdex-mcp/internal/config"
	"github.com/semdex/semdex-mcp/internal/detector"
	"github.com/semdex/semdex-mcp/internal/embedder"
	"github.com/semdex/semdex-mcp/internal/store"
	"github.com/semdex/semdex-mcp/internal/summarizer"
	"github.com/semdex/semdex-mcp/internal/walker"
	"github.com/semdex/semdex-mcp/pkg/types"
)

// Indexer runs indexing operations against one store and one embedder.
type Indexer struct {
	store      store.Store
	embedder   embedder.Embedder
	chunker    *chunker.Chunker
	summarizer summarizer.Summarizer
	walkerCfg  walker.Config
	workers    int
	locks      lockRegistry
}

// New creates an Indexer. A nil cfg uses defaults.
func New(st store.Store, emb embedder.Embedder, cfg *config.Config) *Indexer {
	if cfg == nil {
		cfg = config.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Indexer{
		store:      st,
		embedder:   emb,
		chunker:    chunker.New(cfg.Chunking),
		summarizer: summarizer.NewFrequency(2),
		walkerCfg: walker.Config{
			AllowedExtensions: cfg.Walker.AllowedExtensions,
			ExcludedDirs:      cfg.Walker.ExcludedDirs,
			IncludeHidden:     cfg.Walker.IncludeHidden,
		},
		workers: workers,
	}
}

// IndexProject walks the project root and brings the index up to date.
// Unchanged files are skipped; new and modified files are re-chunked and
// re-embedded; records for files no longer on disk are pruned. With force
// set, every discovered file is re-indexed regardless of its fingerprint.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, force bool) (*types.RunResult, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotFound, rootPath)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", rootPath)
	}

	lock := idx.locks.get(rootPath)
	if !lock.TryAcquire() {
		return nil, types.ErrIndexInProgress
	}
	defer lock.Release()

	start := time.Now()
	result := &types.RunResult{}

	project, err := idx.getOrCreateProject(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("get or create project: %w", err)
	}

	discovered, err := walker.Discover(rootPath, idx.walkerCfg)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	result.FilesSeen = len(discovered)

	storedFiles, err := idx.storedByPath(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	jobs := make([]job, 0, len(discovered))
	relPaths := make([]string, 0, len(discovered))
	for _, path := range discovered {
		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			result.AddError(path, err)
			continue
		}
		relPaths = append(relPaths, relPath)
		jobs = append(jobs, job{absPath: path, relPath: relPath, stored: storedFiles[relPath]})
	}

	if err := idx.processJobs(ctx, project.ID, jobs, force, result); err != nil {
		return nil, err
	}

	// Prune records for files that disappeared since the last run.
	storedPaths := make([]string, 0, len(storedFiles))
	for path := range storedFiles {
		storedPaths = append(storedPaths, path)
	}
	for _, gone := range detector.Removed(storedPaths, relPaths) {
		if err := idx.store.DeleteFile(ctx, project.ID, gone); err != nil {
			result.AddError(gone, err)
		}
	}

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// IndexFiles re-indexes explicit paths under the project root regardless of
// their stored fingerprints. A missing path is recorded as an error and
// skipped; an unsupported path is skipped silently. The run continues either
// way.
func (idx *Indexer) IndexFiles(ctx context.Context, rootPath string, paths []string) (*types.RunResult, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	lock := idx.locks.get(rootPath)
	if !lock.TryAcquire() {
		return nil, types.ErrIndexInProgress
	}
	defer lock.Release()

	start := time.Now()
	result := &types.RunResult{FilesSeen: len(paths)}

	project, err := idx.getOrCreateProject(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("get or create project: %w", err)
	}

	var skippedUpfront int32
	jobs := make([]job, 0, len(paths))
	for _, path := range paths {
		absPath := path
		if !filepath.IsAbs(absPath) {
			absPath = filepath.Join(rootPath, path)
		}
		relPath, err := filepath.Rel(rootPath, absPath)
		if err != nil {
			result.AddError(path, err)
			skippedUpfront++
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			result.AddError(relPath, types.ErrFileNotFound)
			skippedUpfront++
			continue
		}
		if !idx.walkerCfg.Supported(absPath) {
			skippedUpfront++
			continue
		}
		jobs = append(jobs, job{absPath: absPath, relPath: relPath})
	}

	if err := idx.processJobs(ctx, project.ID, jobs, true, result); err != nil {
		return nil, err
	}
	result.FilesSkipped += int(skippedUpfront)

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Status returns index statistics for the project at rootPath.
func (idx *Indexer) Status(ctx context.Context, rootPath string) (*store.ProjectStatus, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	project, err := idx.store.GetProject(ctx, rootPath)
	if err != nil {
		return nil, err
	}
	return idx.store.GetStatus(ctx, project.ID)
}

type job struct {
	absPath string
	relPath string
	stored  *store.File
}

// processJobs runs the per-file pipeline over a worker pool. An error that
// wraps ErrServiceUnavailable cancels the remaining work and aborts the run;
// any other failure is recorded on the result and the run continues.
func (idx *Indexer) processJobs(ctx context.Context, projectID int64, jobs []job, force bool, result *types.RunResult) error {
	var (
		indexed int32
		skipped int32
		chunks  int32
		mu      sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := idx.processFile(gctx, projectID, j, force, &skipped)
			if err != nil {
				if errors.Is(err, types.ErrServiceUnavailable) {
					return err
				}
				mu.Lock()
				result.AddError(j.relPath, err)
				mu.Unlock()
				return nil
			}
			if n >= 0 {
				atomic.AddInt32(&indexed, 1)
				atomic.AddInt32(&chunks, int32(n))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	result.FilesIndexed += int(indexed)
	result.FilesSkipped += int(skipped)
	result.TotalChunks += int(chunks)
	return nil
}

// processFile indexes one file. Returns the chunk count, or -1 when the file
// was skipped as unchanged.
func (idx *Indexer) processFile(ctx context.Context, projectID int64, j job, force bool, skipped *int32) (int, error) {
	var storedMeta *detector.Stored
	if j.stored != nil && !force {
		storedMeta = &detector.Stored{
			Fingerprint: j.stored.Fingerprint,
			ModTime:     j.stored.ModTime,
			SizeBytes:   j.stored.SizeBytes,
		}
	}

	change, err := detector.Classify(j.absPath, storedMeta)
	if err != nil {
		return 0, err
	}
	if change.Class == detector.Unchanged {
		// Touched but content identical: refresh the stored metadata so the
		// fast path applies on the next run instead of re-hashing.
		if j.stored != nil && (!change.ModTime.Equal(j.stored.ModTime) || change.SizeBytes != j.stored.SizeBytes) {
			if err := idx.store.TouchFile(ctx, projectID, j.relPath, change.ModTime, change.SizeBytes); err != nil {
				return 0, err
			}
		}
		atomic.AddInt32(skipped, 1)
		return -1, nil
	}

	category, language, ok := walker.Detect(j.absPath)
	if !ok {
		return 0, types.ErrUnsupportedFile
	}

	content, err := os.ReadFile(j.absPath)
	if err != nil {
		return 0, err
	}

	fileChunks := idx.chunker.Chunk(string(content), category, language)
	for _, chunk := range fileChunks {
		chunk.Summary = idx.summarizer.Summarize(chunk.Content, category)
	}

	if err := idx.embedChunks(ctx, fileChunks); err != nil {
		return 0, err
	}

	record := &store.File{
		ProjectID:   projectID,
		FilePath:    j.relPath,
		Fingerprint: change.Fingerprint,
		ModTime:     change.ModTime,
		SizeBytes:   change.SizeBytes,
		Category:    string(category),
	}
	storedChunks := make([]*store.Chunk, len(fileChunks))
	for i, chunk := range fileChunks {
		storedChunks[i] = &store.Chunk{
			Ordinal:    chunk.Ordinal,
			Content:    chunk.Content,
			StartLine:  chunk.StartLine,
			EndLine:    chunk.EndLine,
			Category:   string(chunk.Category),
			Language:   chunk.Language,
			Context:    chunk.Context,
			Summary:    chunk.Summary,
			TokenCount: chunk.TokenCount,
			Vector:     chunk.Vector,
		}
	}

	if err := idx.store.ReplaceFileChunks(ctx, projectID, record, storedChunks); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}
	return len(storedChunks), nil
}

// embedChunks fills in the vectors for all chunks via one batched call.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return err
	}
	if len(resp.Embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(resp.Embeddings), len(chunks))
	}
	for i, emb := range resp.Embeddings {
		chunks[i].Vector = emb.Vector
	}
	return nil
}

func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*store.Project, error) {
	project, err := idx.store.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	project = &store.Project{
		RootPath:     rootPath,
		IndexVersion: store.CurrentSchemaVersion,
	}
	if err := idx.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (idx *Indexer) storedByPath(ctx context.Context, projectID int64) (map[string]*store.File, error) {
	files, err := idx.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list indexed files: %w", err)
	}
	byPath := make(map[string]*store.File, len(files))
	for _, file := range files {
		byPath[file.FilePath] = file
	}
	return byPath, nil
}

func (idx *Indexer) updateProjectStats(ctx context.Context, project *store.Project) error {
	files, err := idx.store.ListFiles(ctx, project.ID)
	if err != nil {
		return err
	}
	totalChunks, err := idx.store.CountChunks(ctx, project.ID)
	if err != nil {
		return err
	}

	project.TotalFiles = len(files)
	project.TotalChunks = totalChunks
	project.LastIndexedAt = time.Now()
	return idx.store.UpdateProject(ctx, project)
}
