package apple

import (
	"crypto/sha256"
	"time"

	"github.com/devsisters/go-applereceipt"
	"github.com/devsisters/go-applereceipt/applepki"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/code-payments/billing-client/billing"
)

// appleEpoch is the StoreKit reference date.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

func fromAppleTime(seconds float64) time.Time {
	return appleEpoch.Add(time.Duration(seconds * float64(time.Second))).UTC()
}

// classifySKError maps every SKError code into the shared taxonomy. Unknown
// codes land on ErrorGeneral.
func classifySKError(code int) billing.ErrorKind {
	switch code {
	case SKErrorClientInvalid:
		return billing.ErrorBillingUnavailable
	case SKErrorPaymentCancelled:
		return billing.ErrorUserCancelled
	case SKErrorPaymentInvalid:
		return billing.ErrorPaymentInvalid
	case SKErrorPaymentNotAllowed:
		return billing.ErrorPaymentNotAllowed
	case SKErrorStoreProductNotAvailable:
		return billing.ErrorItemUnavailable
	case SKErrorCloudServicePermissionDenied:
		return billing.ErrorServiceUnavailable
	case SKErrorCloudServiceNetworkConnectionFailed:
		return billing.ErrorNetwork
	case SKErrorCloudServiceRevoked:
		return billing.ErrorPaymentNotAllowed
	default:
		return billing.ErrorGeneral
	}
}

// toPurchase maps an SKPaymentTransaction into the shared shape. StoreKit
// has no dedicated purchase token: the transaction identifier serves, and
// when even that is absent one is synthesized from the receipt blob.
func toPurchase(native *Transaction) (*billing.Purchase, error) {
	if native.ProductID == "" {
		return nil, errors.New("native transaction missing product id")
	}

	token := native.OriginalTransactionID
	if token == "" {
		token = native.TransactionID
	}
	if token == "" {
		if native.Receipt == "" {
			return nil, errors.New("native transaction has no token material")
		}
		token = synthesizeToken(native.Receipt)
	}

	var state billing.PurchaseState
	switch native.State {
	case NativeStatePurchasing:
		state = billing.PurchaseStatePurchasing
	case NativeStatePurchased:
		state = billing.PurchaseStatePurchased
	case NativeStateFailed:
		state = billing.PurchaseStateFailed
	case NativeStateRestored:
		state = billing.PurchaseStateRestored
	case NativeStateDeferred:
		state = billing.PurchaseStateDeferred
	default:
		state = billing.PurchaseStateUnknown
	}

	return &billing.Purchase{
		ID:                 native.TransactionID,
		ProductID:          native.ProductID,
		PurchaseToken:      token,
		TransactionDateUTC: fromAppleTime(native.TransactionDate),
		State:              state,
		Payload:            native.ApplicationUsername,
		SignedData:         native.Receipt,
	}, nil
}

// synthesizeToken derives a stable purchase token from a receipt blob,
// preferring the receipt's own hash when it decodes.
func synthesizeToken(encodedReceipt string) string {
	receipt, err := applereceipt.DecodeBase64(encodedReceipt, applepki.CertPool())
	if err == nil && len(receipt.SHA1Hash) > 0 {
		return base58.Encode(receipt.SHA1Hash)
	}

	sum := sha256.Sum256([]byte(encodedReceipt))
	return base58.Encode(sum[:])
}

func toProduct(details *ProductDetails) *billing.Product {
	micros := decimal.NewFromFloat(details.Price).Mul(decimal.New(1_000_000, 0)).IntPart()

	localized := details.LocalizedPrice
	if localized == "" {
		localized = billing.FormatPrice(micros, details.CurrencyCode)
	}

	return &billing.Product{
		ProductID:      details.ProductID,
		DisplayName:    details.Title,
		Description:    details.Description,
		LocalizedPrice: localized,
		PriceMicros:    micros,
		CurrencyCode:   details.CurrencyCode,
	}
}

// purchasesFromReceipt enumerates the grants recorded in an app receipt.
// Entries that cannot be normalized are skipped.
func purchasesFromReceipt(encodedReceipt string) ([]*billing.Purchase, error) {
	receipt, err := applereceipt.DecodeBase64(encodedReceipt, applepki.CertPool())
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode app receipt")
	}

	var purchases []*billing.Purchase
	for _, iap := range receipt.InAppPurchaseReceipts {
		if iap.ProductIdentifier == "" {
			continue
		}

		token := iap.OriginalTransactionIdentifier
		if token == "" {
			token = iap.TransactionIdentifier
		}
		if token == "" {
			continue
		}

		purchases = append(purchases, &billing.Purchase{
			ID:                 iap.TransactionIdentifier,
			ProductID:          iap.ProductIdentifier,
			PurchaseToken:      token,
			TransactionDateUTC: iap.PurchaseDate.UTC(),
			State:              billing.PurchaseStatePurchased,
			SignedData:         encodedReceipt,
		})
	}

	return purchases, nil
}
