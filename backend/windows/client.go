// Package windows adapts the Windows Store in-app purchase surface. The host
// app supplies the native calls through the StoreContext interface; this
// package owns purchase-status classification and XML receipt decoding.
package windows

import "context"

type PurchaseStatus int

const (
	StatusSucceeded        PurchaseStatus = 0
	StatusAlreadyPurchased PurchaseStatus = 1
	StatusNotFulfilled     PurchaseStatus = 2
	StatusNotPurchased     PurchaseStatus = 3
)

// PurchaseResult is the synchronous outcome of a purchase request. On
// success ReceiptXML carries the transaction's receipt.
type PurchaseResult struct {
	Status     PurchaseStatus
	ReceiptXML string
}

// Listing mirrors a store product listing. Price is in currency units; the
// store pre-formats FormattedPrice for the user's market.
type Listing struct {
	ProductID      string
	Name           string
	Description    string
	FormattedPrice string
	Price          float64
	CurrencyCode   string
}

// StoreContext is the native Windows Store surface, implemented by the host
// app's bindings. Purchasing is request/response here rather than a queue;
// the adapter converts completions into the shared event stream.
type StoreContext interface {
	Connect(ctx context.Context) error
	Close() error

	GetListings(ctx context.Context, productIDs []string) ([]Listing, error)
	RequestPurchase(ctx context.Context, productID string) (*PurchaseResult, error)

	// GetAppReceipt returns the XML receipt enumerating every purchase
	// for the app.
	GetAppReceipt(ctx context.Context) (string, error)

	// ReportFulfillment marks a consumable transaction fulfilled.
	ReportFulfillment(ctx context.Context, productID, transactionID string) error
}
