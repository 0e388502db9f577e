// Package android adapts the Google Play billing client surface. The host
// app supplies the on-device native calls through the Client interface; this
// package owns response-code classification and record normalization.
package android

import "context"

// Billing client response codes.
const (
	ResponseServiceTimeout       = -3
	ResponseFeatureNotSupported  = -2
	ResponseServiceDisconnected  = -1
	ResponseOK                   = 0
	ResponseUserCanceled         = 1
	ResponseServiceUnavailable   = 2
	ResponseBillingUnavailable   = 3
	ResponseItemUnavailable      = 4
	ResponseDeveloperError       = 5
	ResponseError                = 6
	ResponseItemAlreadyOwned     = 7
	ResponseItemNotOwned         = 8
	ResponseNetworkError         = 12
)

// Native purchase states.
const (
	NativeStateUnspecified = 0
	NativeStatePurchased   = 1
	NativeStatePending     = 2
)

type SkuDetails struct {
	Sku               string `json:"productId"`
	Type              string `json:"type"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Price             string `json:"price"`
	PriceAmountMicros int64  `json:"price_amount_micros"`
	PriceCurrencyCode string `json:"price_currency_code"`
}

// Purchase mirrors the Play billing purchase record. PurchaseTime is epoch
// milliseconds. ObfuscatedAccountID carries the caller's correlation token.
type Purchase struct {
	OrderID             string `json:"orderId"`
	ProductID           string `json:"productId"`
	PurchaseToken       string `json:"purchaseToken"`
	PurchaseTime        int64  `json:"purchaseTime"`
	PurchaseState       int    `json:"purchaseState"`
	AutoRenewing        bool   `json:"autoRenewing"`
	Acknowledged        bool   `json:"acknowledged"`
	ObfuscatedAccountID string `json:"obfuscatedAccountId"`

	// OriginalJSON and Signature are the signed blob pair handed to
	// external verification.
	OriginalJSON string `json:"-"`
	Signature    string `json:"-"`
}

type FlowParams struct {
	Sku                 string
	SkuType             string
	ObfuscatedAccountID string
}

// PurchasesUpdatedListener receives every purchase state change for the app,
// not just flows this process launched.
type PurchasesUpdatedListener func(responseCode int, purchases []Purchase)

// Client is the device-side Play billing surface, implemented by the host
// app's bindings. Every call returns the native response code alongside any
// transport error.
type Client interface {
	StartConnection(ctx context.Context) (int, error)
	EndConnection() error

	QuerySkuDetails(ctx context.Context, skuType string, skus []string) ([]SkuDetails, int, error)
	LaunchBillingFlow(ctx context.Context, params FlowParams) (int, error)
	QueryPurchases(ctx context.Context, skuType string) ([]Purchase, int, error)
	QueryPurchaseHistory(ctx context.Context, skuType string) ([]Purchase, int, error)
	ConsumeAsync(ctx context.Context, purchaseToken string) (int, error)
	AcknowledgePurchase(ctx context.Context, purchaseToken string) (int, error)

	SetPurchasesUpdatedListener(listener PurchasesUpdatedListener)
}
