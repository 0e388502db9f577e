// Package catalog serves product snapshots through a TTL cache so hosts can
// rebuild purchase UI without re-querying the store backend every time.
package catalog

import (
	"context"
	"time"

	"github.com/ReneKroon/ttlcache"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

type Catalog struct {
	backend backend.Backend
	cache   *ttlcache.Cache
}

func NewCatalog(b backend.Backend, ttl time.Duration) *Catalog {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &Catalog{
		backend: b,
		cache:   cache,
	}
}

// GetProducts returns catalog snapshots for the requested ids, serving from
// cache where possible. Ids the backend does not know are simply absent from
// the result, matching backend query semantics.
func (c *Catalog) GetProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error) {
	var result []*billing.Product
	var missing []string

	for _, id := range productIDs {
		cached, ok := c.cache.Get(cacheKey(id, itemType))
		if !ok {
			missing = append(missing, id)
			continue
		}

		copied := *cached.(*billing.Product)
		result = append(result, &copied)
	}

	if len(missing) == 0 {
		return result, nil
	}

	queried, err := c.backend.QueryProducts(ctx, missing, itemType)
	if err != nil {
		return nil, err
	}

	for _, p := range queried {
		copied := *p
		c.cache.Set(cacheKey(p.ProductID, itemType), &copied)
		result = append(result, p)
	}

	return result, nil
}

// Invalidate drops a single product from the cache.
func (c *Catalog) Invalidate(productID string, itemType billing.ItemType) {
	c.cache.Remove(cacheKey(productID, itemType))
}

func cacheKey(productID string, itemType billing.ItemType) string {
	return itemType.String() + "/" + productID
}
