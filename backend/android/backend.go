package android

import (
	"context"

	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

type Backend struct {
	log    *zap.Logger
	client Client
}

var _ backend.Backend = (*Backend)(nil)

func NewBackend(log *zap.Logger, client Client) *Backend {
	return &Backend{
		log:    log,
		client: client,
	}
}

func (b *Backend) Connect(ctx context.Context) error {
	code, err := b.client.StartConnection(ctx)
	if err != nil {
		return billing.WrapError(billing.ErrorServiceUnavailable, err, "billing service binding failed")
	}
	if code != ResponseOK {
		return responseError(code, "billing service refused connection")
	}
	return nil
}

func (b *Backend) Disconnect() error {
	return b.client.EndConnection()
}

func (b *Backend) QueryProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error) {
	details, code, err := b.client.QuerySkuDetails(ctx, itemType.String(), productIDs)
	if err != nil {
		return nil, billing.WrapError(billing.ErrorProductRequestFailed, err, "sku details query failed")
	}
	if code != ResponseOK {
		return nil, responseError(code, "sku details query rejected")
	}

	products := make([]*billing.Product, 0, len(details))
	for i := range details {
		products = append(products, toProduct(&details[i]))
	}
	return products, nil
}

func (b *Backend) LaunchPurchase(ctx context.Context, params backend.PurchaseParams) error {
	code, err := b.client.LaunchBillingFlow(ctx, FlowParams{
		Sku:                 params.ProductID,
		SkuType:             params.ItemType.String(),
		ObfuscatedAccountID: params.CorrelationToken,
	})
	if err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "billing flow launch failed")
	}
	if code != ResponseOK {
		return responseError(code, "billing flow launch rejected")
	}
	return nil
}

func (b *Backend) QueryOwnedPurchases(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	native, code, err := b.client.QueryPurchases(ctx, itemType.String())
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "owned purchases query failed")
	}
	if code != ResponseOK {
		return nil, responseError(code, "owned purchases query rejected")
	}
	return b.collectPurchases(native), nil
}

func (b *Backend) QueryPurchaseHistory(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	native, code, err := b.client.QueryPurchaseHistory(ctx, itemType.String())
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "purchase history query failed")
	}
	if code != ResponseOK {
		return nil, responseError(code, "purchase history query rejected")
	}
	return b.collectPurchases(native), nil
}

// collectPurchases normalizes an enumeration result. A record that cannot be
// normalized is skipped rather than failing the whole query.
func (b *Backend) collectPurchases(native []Purchase) []*billing.Purchase {
	purchases := make([]*billing.Purchase, 0, len(native))
	for i := range native {
		p, err := toPurchase(&native[i])
		if err != nil {
			b.log.Warn("Skipping malformed purchase record", zap.Error(err))
			continue
		}
		purchases = append(purchases, p)
	}
	return purchases
}

func (b *Backend) Consume(ctx context.Context, productID, purchaseToken string) error {
	code, err := b.client.ConsumeAsync(ctx, purchaseToken)
	if err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "consume failed")
	}
	if code != ResponseOK {
		return responseError(code, "consume rejected")
	}
	return nil
}

func (b *Backend) Acknowledge(ctx context.Context, purchaseToken string) error {
	code, err := b.client.AcknowledgePurchase(ctx, purchaseToken)
	if err != nil {
		return billing.WrapError(billing.ErrorGeneral, err, "acknowledge failed")
	}
	if code != ResponseOK {
		return responseError(code, "acknowledge rejected")
	}
	return nil
}

func (b *Backend) SubscribeToTransactionEvents(h backend.Handler) {
	b.client.SetPurchasesUpdatedListener(func(responseCode int, purchases []Purchase) {
		h.OnTransactionEvents(b.toEvents(responseCode, purchases))
	})
}

// SupportsCorrelationToken is false for Play billing: the obfuscated account
// id is set by the app as a whole, not echoed per purchase flow, so matching
// falls back to product id alone. Concurrent purchases of the same product
// are indistinguishable here; this is a platform limitation, not a bug to
// paper over.
func (b *Backend) SupportsCorrelationToken() bool {
	return false
}

// toEvents normalizes an onPurchasesUpdated callback. Play emits one unified
// stream, so every event is a state change; restores arrive through the
// query surfaces instead.
func (b *Backend) toEvents(responseCode int, native []Purchase) []*backend.Event {
	if responseCode != ResponseOK {
		err := responseError(responseCode, "purchase flow failed")

		// Failures may or may not name a product; keep whatever
		// attribution the platform gave us.
		if len(native) == 0 {
			return []*backend.Event{{
				Kind: backend.EventStateChanged,
				Err:  err,
			}}
		}

		events := make([]*backend.Event, 0, len(native))
		for i := range native {
			events = append(events, &backend.Event{
				Kind: backend.EventStateChanged,
				Purchase: &billing.Purchase{
					ProductID: native[i].ProductID,
					State:     billing.PurchaseStateFailed,
				},
				Err: err,
			})
		}
		return events
	}

	events := make([]*backend.Event, 0, len(native))
	for i := range native {
		p, err := toPurchase(&native[i])
		if err != nil {
			// Someone is actively waiting on this batch; a record
			// that cannot be decoded must surface, not vanish.
			events = append(events, &backend.Event{
				Kind: backend.EventStateChanged,
				Purchase: &billing.Purchase{
					ProductID: native[i].ProductID,
					State:     billing.PurchaseStateUnknown,
				},
				Err: billing.WrapError(billing.ErrorGeneral, err, "malformed purchase record"),
			})
			continue
		}

		events = append(events, &backend.Event{
			Kind:     backend.EventStateChanged,
			Purchase: p,
		})
	}
	return events
}
