// Package apple adapts the StoreKit payment queue surface. The host app
// supplies the device-side calls through the PaymentQueue interface; this
// package owns SKError classification, Apple-epoch date conversion, and
// purchase token synthesis from receipts.
package apple

import "context"

// SKError codes.
const (
	SKErrorUnknown                             = 0
	SKErrorClientInvalid                       = 1
	SKErrorPaymentCancelled                    = 2
	SKErrorPaymentInvalid                      = 3
	SKErrorPaymentNotAllowed                   = 4
	SKErrorStoreProductNotAvailable            = 5
	SKErrorCloudServicePermissionDenied        = 6
	SKErrorCloudServiceNetworkConnectionFailed = 7
	SKErrorCloudServiceRevoked                 = 8
)

// SKPaymentTransaction states.
const (
	NativeStatePurchasing = 0
	NativeStatePurchased  = 1
	NativeStateFailed     = 2
	NativeStateRestored   = 3
	NativeStateDeferred   = 4
)

// Transaction mirrors an SKPaymentTransaction. TransactionDate is seconds
// since the Apple reference date (2001-01-01 UTC). ErrorCode is an SKError
// code, meaningful only when State is failed. ApplicationUsername echoes the
// caller's correlation token.
type Transaction struct {
	TransactionID         string
	OriginalTransactionID string
	ProductID             string
	TransactionDate       float64
	State                 int
	ErrorCode             int
	ApplicationUsername   string

	// Receipt is the base64 PKCS#7 app receipt snapshot attached to the
	// transaction, used for verification and token synthesis.
	Receipt string
}

// ProductDetails mirrors an SKProduct. Price is in currency units.
type ProductDetails struct {
	ProductID      string
	Title          string
	Description    string
	LocalizedPrice string
	Price          float64
	CurrencyCode   string
}

// TransactionObserver receives payment queue activity. StoreKit delivers
// state changes and restores as separate streams; both arrive here.
type TransactionObserver func(updated []Transaction, restored []Transaction)

// PaymentQueue is the device-side StoreKit surface, implemented by the host
// app's bindings.
type PaymentQueue interface {
	Connect(ctx context.Context) error
	Close() error

	FetchProducts(ctx context.Context, productIDs []string) ([]ProductDetails, error)
	AddPayment(ctx context.Context, productID, applicationUsername string) error
	RestoreCompletedTransactions(ctx context.Context) ([]Transaction, error)

	// CurrentReceipt returns the base64 PKCS#7 app receipt, which
	// enumerates every non-consumed purchase.
	CurrentReceipt(ctx context.Context) (string, error)

	FinishTransaction(ctx context.Context, transactionID string) error

	SetTransactionObserver(observer TransactionObserver)
}
