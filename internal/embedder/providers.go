package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/semdex/semdex-mcp/pkg/types"
)

const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	openaiEndpoint = "https://api.openai.com/v1/embeddings"

	// DefaultBatchSize is the sub-batch size for remote API calls.
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	maxRetries        = 3
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 5 * time.Second
	backoffMultiplier = 2.0
)

// HTTPOptions configures a remote embedding provider.
type HTTPOptions struct {
	Provider  string // openai or jina
	APIKey    string
	Model     string // empty selects the provider default
	Endpoint  string // empty selects the provider default
	BatchSize int
	Timeout   time.Duration
	Cache     *Cache
	Limiter   *RateLimiter
}

// HTTPProvider implements Embedder against an OpenAI-compatible embeddings
// endpoint. OpenAI and Jina share the same request and response shape.
type HTTPProvider struct {
	name       string
	apiKey     string
	model      string
	endpoint   string
	dimension  int
	batchSize  int
	httpClient *http.Client
	cache      *Cache
	limiter    *RateLimiter
}

// NewHTTPProvider creates a remote provider. The API key is required.
func NewHTTPProvider(opts HTTPOptions) (*HTTPProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required for provider %s", ErrNoProviderEnabled, opts.Provider)
	}

	p := &HTTPProvider{
		name:      opts.Provider,
		apiKey:    opts.APIKey,
		model:     opts.Model,
		endpoint:  opts.Endpoint,
		batchSize: opts.BatchSize,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
	}
	switch opts.Provider {
	case ProviderJina:
		p.dimension = JinaDimension
		if p.model == "" {
			p.model = DefaultJinaModel
		}
		if p.endpoint == "" {
			p.endpoint = jinaEndpoint
		}
	case ProviderOpenAI:
		p.dimension = OpenAIDimension
		if p.model == "" {
			p.model = DefaultOpenAIModel
		}
		if p.endpoint == "" {
			p.endpoint = openaiEndpoint
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, opts.Provider)
	}

	if p.batchSize <= 0 || p.batchSize > MaxBatchSize {
		p.batchSize = DefaultBatchSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p.httpClient = &http.Client{Timeout: timeout}
	return p, nil
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch embeds all texts, splitting into provider-sized sub-batches.
// Cached texts are not re-sent; response order matches request order.
func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	hashes := make([]string, len(req.Texts))

	// Cache pass: collect the indexes still needing an API call.
	pending := make([]int, 0, len(req.Texts))
	for i, text := range req.Texts {
		hashes[i] = ComputeHash(text)
		if p.cache != nil {
			if emb, ok := p.cache.Get(hashes[i]); ok {
				embeddings[i] = emb
				continue
			}
		}
		pending = append(pending, i)
	}

	for begin := 0; begin < len(pending); begin += p.batchSize {
		end := begin + p.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[begin:end]
		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = req.Texts[idx]
		}

		config := DefaultRetryConfig()
		results, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
			return p.callAPI(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%s batch after %d retries: %w", p.name, config.MaxRetries, err)
		}
		if len(results) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(results), len(batch))
		}

		for i, idx := range batch {
			emb := results[i]
			emb.Hash = hashes[idx]
			embeddings[idx] = emb
			if p.cache != nil {
				p.cache.Set(hashes[idx], emb)
			}
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		if p.limiter != nil && p.limiter.Observe(resp) {
			return nil, fmt.Errorf("rate limited: %s", string(bodyBytes))
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, permanent(fmt.Errorf("api auth error %d: %s", resp.StatusCode, string(bodyBytes)))
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: api error %d: %s", types.ErrServiceUnavailable, resp.StatusCode, string(bodyBytes))
		default:
			return nil, permanent(fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes)))
		}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     apiResp.Model,
		}
	}
	return embeddings, nil
}

func (p *HTTPProvider) Dimension() int   { return p.dimension }
func (p *HTTPProvider) Provider() string { return p.name }
func (p *HTTPProvider) Model() string    { return p.model }

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider generates deterministic embeddings without network access.
// Vectors are derived from repeated hashing of the input and normalized to
// unit length. Useful for tests and for running fully offline.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    localVector(req.Text),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return l.model }
func (l *LocalProvider) Close() error     { return nil }

// localVector derives a unit-length vector from the text by chaining sha256
// over a counter. Identical text always yields the identical vector.
func localVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	seed := sha256.Sum256([]byte(text))
	filled := 0
	counter := uint32(0)
	for filled < LocalDimension {
		var block [36]byte
		copy(block[:32], seed[:])
		binary.LittleEndian.PutUint32(block[32:], counter)
		sum := sha256.Sum256(block[:])
		for i := 0; i < len(sum) && filled < LocalDimension; i++ {
			vector[filled] = float32(sum[i])/127.5 - 1.0
			filled++
		}
		counter++
	}
	return NormalizeVector(vector)
}

// NormalizeVector scales a vector to unit length.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
