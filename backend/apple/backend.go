package apple

import (
	"context"

	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

type Backend struct {
	log   *zap.Logger
	queue PaymentQueue
}

var _ backend.Backend = (*Backend)(nil)

func NewBackend(log *zap.Logger, queue PaymentQueue) *Backend {
	return &Backend{
		log:   log,
		queue: queue,
	}
}

func (b *Backend) Connect(ctx context.Context) error {
	if err := b.queue.Connect(ctx); err != nil {
		return billing.WrapError(billing.ErrorServiceUnavailable, err, "payment queue unavailable")
	}
	return nil
}

func (b *Backend) Disconnect() error {
	return b.queue.Close()
}

func (b *Backend) QueryProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error) {
	details, err := b.queue.FetchProducts(ctx, productIDs)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorProductRequestFailed, err, "product fetch failed")
	}

	products := make([]*billing.Product, 0, len(details))
	for i := range details {
		products = append(products, toProduct(&details[i]))
	}
	return products, nil
}

func (b *Backend) LaunchPurchase(ctx context.Context, params backend.PurchaseParams) error {
	if err := b.queue.AddPayment(ctx, params.ProductID, params.CorrelationToken); err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "failed to queue payment")
	}
	return nil
}

// QueryOwnedPurchases enumerates the app receipt's recorded grants.
func (b *Backend) QueryOwnedPurchases(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	encodedReceipt, err := b.queue.CurrentReceipt(ctx)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "failed to load app receipt")
	}

	purchases, err := purchasesFromReceipt(encodedReceipt)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "failed to decode app receipt")
	}
	return purchases, nil
}

func (b *Backend) QueryPurchaseHistory(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	restored, err := b.queue.RestoreCompletedTransactions(ctx)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorRestoreFailed, err, "restore completed transactions failed")
	}
	return b.collectTransactions(restored), nil
}

func (b *Backend) collectTransactions(native []Transaction) []*billing.Purchase {
	purchases := make([]*billing.Purchase, 0, len(native))
	for i := range native {
		p, err := toPurchase(&native[i])
		if err != nil {
			b.log.Warn("Skipping malformed transaction", zap.Error(err))
			continue
		}
		purchases = append(purchases, p)
	}
	return purchases
}

// Consume finishes the transaction. StoreKit does not distinguish consuming
// from acknowledging; finishing the transaction is both.
func (b *Backend) Consume(ctx context.Context, productID, purchaseToken string) error {
	if err := b.queue.FinishTransaction(ctx, purchaseToken); err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "finish transaction failed")
	}
	return nil
}

func (b *Backend) Acknowledge(ctx context.Context, purchaseToken string) error {
	if err := b.queue.FinishTransaction(ctx, purchaseToken); err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "finish transaction failed")
	}
	return nil
}

func (b *Backend) SubscribeToTransactionEvents(h backend.Handler) {
	b.queue.SetTransactionObserver(func(updated []Transaction, restored []Transaction) {
		events := make([]*backend.Event, 0, len(updated)+len(restored))
		events = append(events, b.toEvents(backend.EventStateChanged, updated)...)
		events = append(events, b.toEvents(backend.EventRestored, restored)...)
		h.OnTransactionEvents(events)
	})
}

// SupportsCorrelationToken is true: the application username set on a
// payment is echoed back on its transactions.
func (b *Backend) SupportsCorrelationToken() bool {
	return true
}

func (b *Backend) toEvents(kind backend.EventKind, native []Transaction) []*backend.Event {
	events := make([]*backend.Event, 0, len(native))
	for i := range native {
		txn := &native[i]

		if kind == backend.EventStateChanged && txn.State == NativeStateFailed {
			events = append(events, &backend.Event{
				Kind: kind,
				Purchase: &billing.Purchase{
					ID:        txn.TransactionID,
					ProductID: txn.ProductID,
					Payload:   txn.ApplicationUsername,
					State:     billing.PurchaseStateFailed,
				},
				Err: billing.NewError(classifySKError(txn.ErrorCode), "transaction failed"),
			})
			continue
		}

		p, err := toPurchase(txn)
		if err != nil {
			events = append(events, &backend.Event{
				Kind: kind,
				Purchase: &billing.Purchase{
					ID:        txn.TransactionID,
					ProductID: txn.ProductID,
					Payload:   txn.ApplicationUsername,
					State:     billing.PurchaseStateUnknown,
				},
				Err: billing.WrapError(billing.ErrorGeneral, err, "malformed transaction"),
			})
			continue
		}

		events = append(events, &backend.Event{
			Kind:     kind,
			Purchase: p,
		})
	}
	return events
}
