// Package backend defines the capability surface a platform store adapter
// must provide. Adapters normalize native records and response codes before
// they reach the reconciliation engine, so the engine is written once.
package backend

import (
	"context"

	"github.com/code-payments/billing-client/billing"
)

type EventKind uint8

const (
	EventStateChanged EventKind = iota
	EventRestored
)

// Event is a normalized transaction notification. Err is set when the native
// flow failed; Purchase still identifies the product when the platform
// attributes the failure to one. Restored events always carry a purchase.
type Event struct {
	Kind     EventKind
	ItemType billing.ItemType

	Purchase *billing.Purchase
	Err      *billing.Error
}

// ProductID returns the product the event applies to, or empty when the
// native flow failed before a product could be attributed.
func (e *Event) ProductID() string {
	if e.Purchase != nil {
		return e.Purchase.ProductID
	}
	return ""
}

// CorrelationToken returns the caller payload echoed by the backend, when the
// backend supports one.
func (e *Event) CorrelationToken() string {
	if e.Purchase != nil {
		return e.Purchase.Payload
	}
	return ""
}

type Handler interface {
	OnTransactionEvents(events []*Event)
}

// HandlerFunc is an adapter to allow the use of ordinary functions as
// Handlers.
type HandlerFunc func([]*Event)

func (f HandlerFunc) OnTransactionEvents(events []*Event) {
	f(events)
}

type PurchaseParams struct {
	ProductID string
	ItemType  billing.ItemType

	// CorrelationToken is forwarded to backends that echo a payload back
	// on their purchase events. Backends without support ignore it.
	CorrelationToken string
}

// Backend is a platform store client. Completion of LaunchPurchase is
// delivered through the subscribed transaction handler, never through the
// LaunchPurchase return; the return covers launch failures only.
//
// The event stream is global to the app: a subscribed handler sees all
// purchase activity, not just flows the caller initiated.
type Backend interface {
	Connect(ctx context.Context) error
	Disconnect() error

	QueryProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error)

	// LaunchPurchase starts the native purchase flow. A non-nil error is a
	// classified launch failure; in particular billing.ErrorAlreadyOwned
	// means the grant exists and should be resolved from owned purchases.
	LaunchPurchase(ctx context.Context, params PurchaseParams) error

	QueryOwnedPurchases(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error)
	QueryPurchaseHistory(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error)

	Consume(ctx context.Context, productID, purchaseToken string) error
	Acknowledge(ctx context.Context, purchaseToken string) error

	// SubscribeToTransactionEvents registers the session-wide handler.
	// Backends deliver each batch synchronously; the next batch is not
	// delivered until the handler returns, which preserves per-product
	// ordering.
	SubscribeToTransactionEvents(h Handler)

	// SupportsCorrelationToken reports whether purchase events echo the
	// caller's correlation token. Without it, matching falls back to
	// product id alone: concurrent purchases of the same product are then
	// indistinguishable, an accepted precision limit of those platforms.
	SupportsCorrelationToken() bool
}
