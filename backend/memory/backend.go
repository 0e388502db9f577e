package memory

import (
	"context"
	"sync"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

// Backend is an in-memory store backend. Tests script its catalog, owned
// purchases, and launch behavior, then emit transaction events by hand.
type Backend struct {
	mu sync.Mutex

	connected  bool
	connectErr error

	tokenAware bool

	catalog map[string]*billing.Product
	owned   []*billing.Purchase
	history []*billing.Purchase

	consumed     map[string]bool
	acknowledged map[string]bool

	launchHook func(params backend.PurchaseParams) error
	launches   []backend.PurchaseParams

	handler backend.Handler
}

func NewBackend() *Backend {
	return &Backend{
		catalog:      map[string]*billing.Product{},
		consumed:     map[string]bool{},
		acknowledged: map[string]bool{},
	}
}

func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connectErr != nil {
		return b.connectErr
	}

	b.connected = true
	return nil
}

func (b *Backend) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = false
	return nil
}

func (b *Backend) QueryProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var products []*billing.Product
	for _, id := range productIDs {
		if p, ok := b.catalog[id]; ok {
			clone := *p
			products = append(products, &clone)
		}
	}
	return products, nil
}

func (b *Backend) LaunchPurchase(ctx context.Context, params backend.PurchaseParams) error {
	b.mu.Lock()
	hook := b.launchHook
	b.launches = append(b.launches, params)
	b.mu.Unlock()

	if hook != nil {
		return hook(params)
	}
	return nil
}

func (b *Backend) QueryOwnedPurchases(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var purchases []*billing.Purchase
	for _, p := range b.owned {
		purchases = append(purchases, p.Clone())
	}
	return purchases, nil
}

func (b *Backend) QueryPurchaseHistory(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var purchases []*billing.Purchase
	for _, p := range b.history {
		purchases = append(purchases, p.Clone())
	}
	return purchases, nil
}

func (b *Backend) Consume(ctx context.Context, productID, purchaseToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	remaining := b.owned[:0]
	for _, p := range b.owned {
		if p.ProductID == productID && p.PurchaseToken == purchaseToken {
			found = true
			continue
		}
		remaining = append(remaining, p)
	}
	b.owned = remaining

	if !found {
		return billing.NewError(billing.ErrorNotOwned, "no such grant to consume")
	}

	b.consumed[purchaseToken] = true
	return nil
}

func (b *Backend) Acknowledge(ctx context.Context, purchaseToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.owned {
		if p.PurchaseToken == purchaseToken {
			b.acknowledged[purchaseToken] = true
			return nil
		}
	}
	return billing.NewError(billing.ErrorNotOwned, "no such grant to acknowledge")
}

func (b *Backend) SubscribeToTransactionEvents(h backend.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handler = h
}

func (b *Backend) SupportsCorrelationToken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tokenAware
}

//
// Scripting surface for tests.
//

func (b *Backend) SetConnectError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connectErr = err
}

func (b *Backend) SetTokenAware(aware bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokenAware = aware
}

func (b *Backend) SetCatalog(products ...*billing.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.catalog = map[string]*billing.Product{}
	for _, p := range products {
		b.catalog[p.ProductID] = p
	}
}

func (b *Backend) SetOwned(purchases ...*billing.Purchase) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.owned = purchases
}

func (b *Backend) SetHistory(purchases ...*billing.Purchase) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = purchases
}

// SetLaunchHook overrides the default no-op launch. The hook runs on the
// caller's goroutine before LaunchPurchase returns.
func (b *Backend) SetLaunchHook(hook func(params backend.PurchaseParams) error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.launchHook = hook
}

// Launches returns every purchase intent forwarded to the backend.
func (b *Backend) Launches() []backend.PurchaseParams {
	b.mu.Lock()
	defer b.mu.Unlock()

	launches := make([]backend.PurchaseParams, len(b.launches))
	copy(launches, b.launches)
	return launches
}

func (b *Backend) IsConsumed(purchaseToken string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.consumed[purchaseToken]
}

func (b *Backend) IsAcknowledged(purchaseToken string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.acknowledged[purchaseToken]
}

// Emit delivers a batch of events to the subscribed handler, synchronously on
// the calling goroutine, matching how platform queues deliver callbacks.
func (b *Backend) Emit(events ...*backend.Event) {
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()

	if handler == nil {
		return
	}
	handler.OnTransactionEvents(events)
}

func (b *Backend) EmitPurchased(purchase *billing.Purchase) {
	b.Emit(&backend.Event{
		Kind:     backend.EventStateChanged,
		Purchase: purchase,
	})
}

func (b *Backend) EmitFailed(productID string, kind billing.ErrorKind) {
	b.Emit(&backend.Event{
		Kind:     backend.EventStateChanged,
		Purchase: &billing.Purchase{ProductID: productID, State: billing.PurchaseStateFailed},
		Err:      billing.NewError(kind, "purchase failed"),
	})
}

func (b *Backend) EmitRestored(purchase *billing.Purchase) {
	b.Emit(&backend.Event{
		Kind:     backend.EventRestored,
		Purchase: purchase,
	})
}
