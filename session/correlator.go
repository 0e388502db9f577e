package session

import (
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache"
	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
	"github.com/code-payments/billing-client/event"
)

// correlator is the session-wide transaction event observer. It is
// subscribed once for the life of the session; individual purchase calls
// attach and detach their pending slot rather than the subscription itself.
type correlator struct {
	log        *zap.Logger
	tokenAware bool

	// updates carries restored and unmatched events out of band, keyed by
	// product id, so hosts can reconcile purchases that complete outside
	// any explicit purchase call.
	updates *event.Bus[string, *backend.Event]

	mu      sync.Mutex
	pending *pendingRequest

	// resolvedGrants remembers grants already used to resolve a request.
	// Platforms document that the same event may be delivered twice; a
	// redelivery after resolution must be absorbed silently. Entries
	// expire so a long-lived session doesn't accumulate every grant it
	// has ever seen; platform redelivery happens within seconds.
	resolvedGrants *ttlcache.Cache
}

func newCorrelator(log *zap.Logger, tokenAware bool, updates *event.Bus[string, *backend.Event], grantTTL time.Duration) *correlator {
	resolved := ttlcache.NewCache()
	resolved.SetTTL(grantTTL)
	return &correlator{
		log:            log,
		tokenAware:     tokenAware,
		updates:        updates,
		resolvedGrants: resolved,
	}
}

// setPending attaches a purchase call's slot. At most one may be attached;
// attaching over a live request fails fast instead of silently replacing the
// earlier listener.
func (c *correlator) setPending(p *pendingRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return billing.ErrPurchaseInFlight
	}

	c.pending = p
	return nil
}

// clearPending detaches a slot if it is still attached. Safe to call after
// the correlator already detached it on resolution.
func (c *correlator) clearPending(p *pendingRequest) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

// cancelPending detaches and resolves the outstanding slot, if any. Used by
// Disconnect so a suspended purchase call never hangs.
func (c *correlator) cancelPending(cause error) {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()

	if p == nil {
		return
	}

	if p.resolve(nil, cause) {
		c.log.Debug("Cancelled pending purchase request",
			zap.String("product_id", p.productID),
		)
	}
}

// markResolved records a grant as consumed by a resolution that happened
// outside the event stream (the already-owned path), so a late event for it
// is absorbed rather than routed out of band.
func (c *correlator) markResolved(productID, purchaseToken string) {
	c.mu.Lock()
	c.resolvedGrants.Set(productID+"|"+purchaseToken, struct{}{})
	c.mu.Unlock()
}

// OnTransactionEvents implements backend.Handler. Batches are walked in
// delivery order on the backend's goroutine; the first matching event
// resolves the pending slot and later ones for the same product flow out of
// band.
func (c *correlator) OnTransactionEvents(events []*backend.Event) {
	for _, e := range events {
		c.dispatch(e)
	}
}

func (c *correlator) dispatch(e *backend.Event) {
	if e.Kind == backend.EventRestored {
		c.routeOutOfBand(e)
		return
	}

	grant := grantKey(e)

	c.mu.Lock()
	if grant != "" {
		if _, done := c.resolvedGrants.Get(grant); done {
			c.mu.Unlock()
			c.log.Debug("Absorbing duplicate delivery for resolved grant",
				zap.String("product_id", e.ProductID()),
			)
			return
		}
	}

	pending := c.pending
	// A failure with no product attribution (a dismissed native sheet on
	// some platforms) can only belong to the flow in flight: the same
	// rationale that accepts product-only matching accepts this.
	matched := pending != nil &&
		(pending.matches(e, c.tokenAware) || (e.Err != nil && e.ProductID() == ""))
	if matched {
		// Detach before resolving; the session-wide observer stays
		// alive for future requests.
		c.pending = nil
		if grant != "" {
			c.resolvedGrants.Set(grant, struct{}{})
		}
	}
	c.mu.Unlock()

	if matched {
		var err error
		if e.Err != nil {
			err = e.Err
		}

		if !pending.resolve(e.Purchase, err) {
			// Slot was cancelled or timed out first.
			c.log.Debug("Dropped event for already resolved request",
				zap.String("product_id", e.ProductID()),
			)
		}
		return
	}

	if e.Err != nil {
		// A failure nobody is waiting on carries no grant to reconcile.
		c.log.Debug("Dropping unmatched failure event",
			zap.String("product_id", e.ProductID()),
			zap.String("kind", billing.Kind(e.Err).String()),
		)
		return
	}

	c.routeOutOfBand(e)
}

func (c *correlator) routeOutOfBand(e *backend.Event) {
	c.log.Debug("Routing out-of-band purchase event",
		zap.String("product_id", e.ProductID()),
	)
	_ = c.updates.OnEvent(e.ProductID(), e)
}

func grantKey(e *backend.Event) string {
	if e.Purchase == nil || e.Purchase.PurchaseToken == "" {
		return ""
	}
	return e.Purchase.ProductID + "|" + e.Purchase.PurchaseToken
}
