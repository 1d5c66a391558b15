// Package searcher answers semantic queries against the vector store. The
// query text is embedded with the same provider used at index time, matched
// by cosine similarity, and results below the similarity floor are dropped.
// Responses are cached with a TTL; the cache is purged after indexing runs.
package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/semdex/semdex-mcp/internal/embedder"
	"github.com/semdex/semdex-mcp/internal/store"
	"github.com/semdex/semdex-mcp/pkg/types"
)

const (
	// DefaultLimit is applied when the request does not set a limit.
	DefaultLimit = 10
	// MaxLimit caps the number of results per query.
	MaxLimit = 100
	// DefaultCacheTTL is how long a cached response stays valid.
	DefaultCacheTTL = 1 * time.Hour

	cacheEntries = 1000
)

// SearchRequest contains parameters for one query.
type SearchRequest struct {
	Query         string
	ProjectID     int64
	Limit         int
	MinSimilarity float64
	Category      string // "code" or "documentation"; empty matches both
	FilePattern   string // GLOB pattern on the relative file path
	UseCache      bool
	CacheTTL      time.Duration
}

// SearchResponse contains the ranked results and query metadata.
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher is the query engine.
type Searcher struct {
	store    store.Store
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// New creates a Searcher.
func New(st store.Store, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheEntries)
	if err != nil {
		// Only possible with a non-positive size.
		panic(fmt.Sprintf("failed to create query cache: %v", err))
	}
	return &Searcher{
		store:    st,
		embedder: emb,
		cache:    cache,
	}
}

// Search embeds the query and returns the nearest chunks, best match first.
// Ties are broken by file path then chunk ordinal, so the same query against
// the same index always returns the same ordering.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}

	filters := &store.Filters{
		Category:    req.Category,
		FilePattern: req.FilePattern,
	}
	hits, err := s.store.Query(ctx, req.ProjectID, embedding.Vector, req.Limit, req.MinSimilarity, filters)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	results := make([]types.SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = types.SearchResult{
			FilePath:   hit.FilePath,
			Content:    hit.Chunk.Content,
			Context:    hit.Chunk.Context,
			Category:   types.Category(hit.Chunk.Category),
			Similarity: hit.Similarity,
			StartLine:  hit.Chunk.StartLine,
			EndLine:    hit.Chunk.EndLine,
			Summary:    hit.Chunk.Summary,
		}
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(start),
	}

	if req.UseCache && len(results) > 0 {
		s.storeInCache(req, response)
	}
	return response, nil
}

// InvalidateCache drops all cached responses. Called after indexing runs so
// stale rankings are never served.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return types.ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.MinSimilarity < 0 {
		req.MinSimilarity = 0
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}
	return nil
}

func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := queryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	// Deep copy while still holding the read lock.
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(queryHash(req), entry)
	s.cacheMu.Unlock()
}

// copyResponse deep copies a response so cached values cannot be mutated by
// callers.
func copyResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Results:      make([]types.SearchResult, len(src.Results)),
	}
	copy(dst.Results, src.Results)
	return dst
}

// queryHash builds a deterministic cache key from every request field that
// affects the result set.
func queryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%d|%.4f|", req.ProjectID, req.Limit, req.MinSimilarity)
	data.WriteString(req.Category)
	data.WriteString("|")
	data.WriteString(req.FilePattern)
	return sha256.Sum256([]byte(data.String()))
}
