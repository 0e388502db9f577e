package billing

import (
	"time"
)

type ItemType uint8

const (
	ItemTypeUnknown ItemType = iota
	ItemTypeInAppPurchase
	ItemTypeSubscription
)

func (t ItemType) String() string {
	switch t {
	case ItemTypeInAppPurchase:
		return "inapp"
	case ItemTypeSubscription:
		return "subs"
	default:
		return "unknown"
	}
}

type PurchaseState uint8

const (
	PurchaseStateUnknown PurchaseState = iota
	PurchaseStatePurchasing
	PurchaseStatePurchased
	PurchaseStateFailed
	PurchaseStateCanceled
	PurchaseStateRestored
	PurchaseStateDeferred
	PurchaseStatePaymentPending
)

func (s PurchaseState) String() string {
	switch s {
	case PurchaseStatePurchasing:
		return "purchasing"
	case PurchaseStatePurchased:
		return "purchased"
	case PurchaseStateFailed:
		return "failed"
	case PurchaseStateCanceled:
		return "canceled"
	case PurchaseStateRestored:
		return "restored"
	case PurchaseStateDeferred:
		return "deferred"
	case PurchaseStatePaymentPending:
		return "payment_pending"
	default:
		return "unknown"
	}
}

type ConsumptionState uint8

const (
	ConsumptionStateNotConsumed ConsumptionState = iota
	ConsumptionStateConsumed
)

// Product is an immutable snapshot of a purchasable item as reported by a
// backend catalog. It is a value type; query results are never mutated.
type Product struct {
	ProductID      string
	DisplayName    string
	Description    string
	LocalizedPrice string
	PriceMicros    int64
	CurrencyCode   string
}

// Purchase is the record of a completed, pending, restored, or failed
// transaction. (ProductID, PurchaseToken) uniquely identifies a grant; two
// records with the same pair are the same grant and must be deduplicated when
// enumerating restored or historical purchases.
type Purchase struct {
	// ID is the backend transaction or order identifier. It may be empty
	// before the backend completes the transaction.
	ID string

	ProductID string

	// PurchaseToken is the opaque backend credential used for consumption
	// and acknowledgement. Backends without a dedicated token synthesize
	// one from the receipt.
	PurchaseToken string

	TransactionDateUTC time.Time

	State PurchaseState

	// AutoRenewing is only meaningful for subscriptions.
	AutoRenewing bool

	ConsumptionState ConsumptionState

	// Payload is the caller-supplied correlation token echoed back by
	// backends that support one. Empty otherwise.
	Payload string

	// SignedData and Signature carry the backend's signed purchase blob
	// when one exists, for external verification.
	SignedData string
	Signature  string
}

func (p *Purchase) Clone() *Purchase {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// SameGrant reports whether two purchase records refer to the same underlying
// grant.
func (p *Purchase) SameGrant(other *Purchase) bool {
	return p.ProductID == other.ProductID && p.PurchaseToken == other.PurchaseToken
}
