package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"storefront-api/internal/cache"
	"storefront-api/internal/domain"
)

const productCacheTTL = 30 * time.Second

// cachedRepo is a read-through decorator over a Repository. Cache failures
// fall back to the underlying store; stock-sensitive callers tolerate the
// short TTL because order creation re-checks stock conditionally.
type cachedRepo struct {
	next   Repository
	cache  cache.Cache
	logger *log.Logger
}

func NewCached(next Repository, c cache.Cache, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &cachedRepo{next: next, cache: c, logger: logger}
}

func (r *cachedRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	key := r.cache.GenerateKey("product", id)

	if raw, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Printf("catalog cache: get id=%s error=%v", id, err)
	} else if raw != "" {
		var p domain.Product
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
	}

	p, err := r.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := r.cache.Set(ctx, key, data, productCacheTTL); err != nil {
			r.logger.Printf("catalog cache: set id=%s error=%v", id, err)
		}
	}

	return p, nil
}
