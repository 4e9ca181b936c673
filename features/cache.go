package features

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider memoizes extraction results per (coordinate, date window).
// Imagery for a fixed window does not change between requests, so repeat
// analyses of the same district skip the expensive upstream fetch.
// Only successful extractions are cached; failures stay retryable.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float64]
}

// NewCachedProvider wraps inner with an LRU of the given size.
func NewCachedProvider(inner Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

// ExtractFeatures returns the cached vector when available.
func (p *CachedProvider) ExtractFeatures(ctx context.Context, lat, lon float64, dateStart, dateEnd string) ([]float64, error) {
	key := fmt.Sprintf("%.6f:%.6f:%s:%s", lat, lon, dateStart, dateEnd)
	if vector, ok := p.cache.Get(key); ok {
		return vector, nil
	}

	vector, err := p.inner.ExtractFeatures(ctx, lat, lon, dateStart, dateEnd)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, vector)
	return vector, nil
}
