package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/semdex/semdex-mcp/internal/config"
)

// Environment variable names
const (
	EnvProvider     = "SEMDEX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// New creates an embedder from configuration. The API key is read from the
// environment variable named by APIKeyEnv, falling back to the provider's
// conventional variable.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderLocal:
		return NewLocalProvider(cache)
	case ProviderJina, ProviderOpenAI:
		return NewHTTPProvider(HTTPOptions{
			Provider:  provider,
			APIKey:    apiKey(cfg, provider),
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
			Cache:     cache,
			Limiter:   NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. SEMDEX_EMBEDDING_PROVIDER (jina, openai, local)
//  2. Available API keys: JINA_API_KEY, OPENAI_API_KEY
//  3. Local provider when nothing is configured
func NewFromEnv() (Embedder, error) {
	cfg := config.Default().Embedder
	if provider := os.Getenv(EnvProvider); provider != "" {
		cfg.Provider = provider
		return New(cfg)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		cfg.Provider = ProviderJina
		return New(cfg)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		cfg.Provider = ProviderOpenAI
		return New(cfg)
	}
	cfg.Provider = ProviderLocal
	return New(cfg)
}

// DetectProvider returns the provider NewFromEnv would select.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

func apiKey(cfg config.EmbedderConfig, provider string) string {
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			return key
		}
	}
	switch provider {
	case ProviderJina:
		return os.Getenv(EnvJinaAPIKey)
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	}
	return ""
}
