package knowledge

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached memoizes successful lookups by normalized question text.
type Cached struct {
	next  Looker
	cache *expirable.LRU[string, []Answer]
}

// NewCached wraps next with an LRU cache of size entries that expire after ttl.
func NewCached(next Looker, size int, ttl time.Duration) *Cached {
	if next == nil {
		panic("knowledge: cached looker requires a backend")
	}
	if size <= 0 {
		size = 256
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, []Answer](size, nil, ttl),
	}
}

func (c *Cached) Lookup(ctx context.Context, question string) ([]Answer, error) {
	key := normalizeQuestion(question)
	if key == "" {
		return nil, nil
	}
	if hit, ok := c.cache.Get(key); ok {
		return append([]Answer(nil), hit...), nil
	}
	answers, err := c.next.Lookup(ctx, question)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]Answer(nil), answers...))
	return answers, nil
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.cache.Purge()
}
