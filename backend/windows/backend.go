package windows

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

// Backend adapts a StoreContext to the shared backend surface. The Windows
// purchase flow is synchronous, so the adapter manufactures transaction
// events itself before RequestPurchase returns.
type Backend struct {
	log   *zap.Logger
	store StoreContext

	handlerMu sync.Mutex
	handler   backend.Handler
}

var _ backend.Backend = (*Backend)(nil)

func NewBackend(log *zap.Logger, store StoreContext) *Backend {
	return &Backend{
		log:   log,
		store: store,
	}
}

func (b *Backend) Connect(ctx context.Context) error {
	if err := b.store.Connect(ctx); err != nil {
		return billing.WrapError(billing.ErrorServiceUnavailable, err, "store context unavailable")
	}
	return nil
}

func (b *Backend) Disconnect() error {
	return b.store.Close()
}

func (b *Backend) QueryProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error) {
	listings, err := b.store.GetListings(ctx, productIDs)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorProductRequestFailed, err, "listing query failed")
	}

	products := make([]*billing.Product, 0, len(listings))
	for i := range listings {
		products = append(products, toProduct(listings[i]))
	}
	return products, nil
}

func (b *Backend) LaunchPurchase(ctx context.Context, params backend.PurchaseParams) error {
	result, err := b.store.RequestPurchase(ctx, params.ProductID)
	if err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "purchase request failed")
	}

	switch result.Status {
	case StatusAlreadyPurchased, StatusNotFulfilled:
		return billing.NewError(classifyStatus(result.Status), "product already purchased")
	case StatusNotPurchased:
		b.deliver([]*backend.Event{{
			Kind: backend.EventStateChanged,
			Purchase: &billing.Purchase{
				ProductID: params.ProductID,
				State:     billing.PurchaseStateCanceled,
			},
			Err: billing.NewError(billing.ErrorUserCancelled, "purchase was declined"),
		}})
		return nil
	}

	b.deliver(b.toEvents(params, result.ReceiptXML))
	return nil
}

func (b *Backend) QueryOwnedPurchases(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	return b.receiptPurchases(ctx)
}

// QueryPurchaseHistory enumerates the app receipt; the Windows Store keeps no
// separate history surface, so history and owned purchases coincide.
func (b *Backend) QueryPurchaseHistory(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	return b.receiptPurchases(ctx)
}

func (b *Backend) receiptPurchases(ctx context.Context) ([]*billing.Purchase, error) {
	receiptXML, err := b.store.GetAppReceipt(ctx)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "app receipt query failed")
	}
	if receiptXML == "" {
		return nil, nil
	}

	purchases, skipped, err := parseReceipt(receiptXML)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "app receipt decode failed")
	}
	if skipped > 0 {
		b.log.Warn("Skipped malformed receipt entries", zap.Int("count", skipped))
	}
	return purchases, nil
}

func (b *Backend) Consume(ctx context.Context, productID, purchaseToken string) error {
	if err := b.store.ReportFulfillment(ctx, productID, purchaseToken); err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "fulfillment report failed")
	}
	return nil
}

// Acknowledge has no Windows counterpart; entitlements are implicit in the
// app receipt.
func (b *Backend) Acknowledge(ctx context.Context, purchaseToken string) error {
	return billing.NewError(billing.ErrorFeatureNotSupported, "acknowledge is not supported on this platform")
}

func (b *Backend) SubscribeToTransactionEvents(h backend.Handler) {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	b.handler = h
}

// SupportsCorrelationToken is false here: receipts carry no caller payload,
// so matching falls back to product id alone.
func (b *Backend) SupportsCorrelationToken() bool {
	return false
}

// deliver hands a batch to the subscribed handler synchronously, preserving
// delivery order with the flow that produced it.
func (b *Backend) deliver(events []*backend.Event) {
	b.handlerMu.Lock()
	h := b.handler
	b.handlerMu.Unlock()

	if h == nil || len(events) == 0 {
		return
	}
	h.OnTransactionEvents(events)
}

// toEvents normalizes a successful purchase receipt. The receipt names the
// purchased product among all product entries; only that entry is emitted.
func (b *Backend) toEvents(params backend.PurchaseParams, receiptXML string) []*backend.Event {
	purchases, skipped, err := parseReceipt(receiptXML)
	if err == nil && skipped > 0 {
		b.log.Warn("Skipped malformed receipt entries", zap.Int("count", skipped))
	}
	if err == nil {
		var newest *billing.Purchase
		for _, p := range purchases {
			if p.ProductID != params.ProductID {
				continue
			}
			if newest == nil || p.TransactionDateUTC.After(newest.TransactionDateUTC) {
				newest = p
			}
		}
		if newest != nil {
			if newest.TransactionDateUTC.IsZero() {
				newest.TransactionDateUTC = time.Now().UTC()
			}
			return []*backend.Event{{
				Kind:     backend.EventStateChanged,
				Purchase: newest,
			}}
		}
		err = billing.NewError(billing.ErrorGeneral, "receipt does not name the purchased product")
	}

	// Someone is actively waiting on this flow; a receipt that cannot be
	// decoded must surface, not vanish.
	return []*backend.Event{{
		Kind: backend.EventStateChanged,
		Purchase: &billing.Purchase{
			ProductID: params.ProductID,
			State:     billing.PurchaseStateUnknown,
		},
		Err: billing.WrapError(billing.ErrorGeneral, err, "malformed purchase receipt"),
	}}
}
