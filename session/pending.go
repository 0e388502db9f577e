package session

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

// pendingRequest is the single-slot future a purchase call suspends on. The
// slot supports exactly one producer resolution: the first writer wins and
// every later write is a no-op. Resolution can come from the correlator, from
// Disconnect, or from the caller's context expiring.
type pendingRequest struct {
	productID        string
	itemType         billing.ItemType
	correlationToken string

	mu       sync.Mutex
	resolved bool
	purchase *billing.Purchase
	err      error
	done     chan struct{}
}

func newPendingRequest(productID string, itemType billing.ItemType, correlationToken string) *pendingRequest {
	return &pendingRequest{
		productID:        productID,
		itemType:         itemType,
		correlationToken: correlationToken,
		done:             make(chan struct{}),
	}
}

// resolve writes the terminal outcome. Returns false when the slot was
// already resolved, in which case nothing changes.
func (p *pendingRequest) resolve(purchase *billing.Purchase, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved {
		return false
	}

	p.resolved = true
	p.purchase = purchase
	p.err = err
	close(p.done)

	return true
}

// wait suspends the caller until the slot resolves. Context expiry resolves
// the slot itself, so a late event delivery finds it already terminal.
func (p *pendingRequest) wait(ctx context.Context) (*billing.Purchase, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		var cause error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = billing.WrapError(billing.ErrorServiceTimeout, ctx.Err(), "timed out waiting for purchase completion")
		} else {
			cause = billing.ErrPurchaseCancelled
		}

		// The backend may resolve concurrently; first writer wins.
		p.resolve(nil, cause)
		<-p.done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.purchase, p.err
}

// matches reports whether a state-changed event belongs to this request.
// Token-aware backends additionally require the echoed correlation token to
// line up unless the caller supplied none. Backends without token support
// match on product id alone and accept the first hit: concurrent purchases of
// the same product cannot be told apart there.
func (p *pendingRequest) matches(e *backend.Event, tokenAware bool) bool {
	if e.ProductID() != p.productID {
		return false
	}
	if !tokenAware || p.correlationToken == "" {
		return true
	}
	return e.CorrelationToken() == p.correlationToken
}
