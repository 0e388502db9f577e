package android

import (
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/billing-client/billing"
)

// classifyResponse maps every billing client response code into the shared
// taxonomy. The mapping is total: unknown codes land on ErrorGeneral.
func classifyResponse(code int) billing.ErrorKind {
	switch code {
	case ResponseServiceTimeout:
		return billing.ErrorServiceTimeout
	case ResponseFeatureNotSupported:
		return billing.ErrorFeatureNotSupported
	case ResponseServiceDisconnected:
		return billing.ErrorServiceDisconnected
	case ResponseUserCanceled:
		return billing.ErrorUserCancelled
	case ResponseServiceUnavailable:
		return billing.ErrorServiceUnavailable
	case ResponseBillingUnavailable:
		return billing.ErrorBillingUnavailable
	case ResponseItemUnavailable:
		return billing.ErrorItemUnavailable
	case ResponseDeveloperError:
		return billing.ErrorDeveloper
	case ResponseItemAlreadyOwned:
		return billing.ErrorAlreadyOwned
	case ResponseItemNotOwned:
		return billing.ErrorNotOwned
	case ResponseNetworkError:
		return billing.ErrorNetwork
	default:
		return billing.ErrorGeneral
	}
}

func responseError(code int, message string) *billing.Error {
	return billing.NewError(classifyResponse(code), message)
}

// toPurchase maps a native purchase record into the shared shape. A record
// with no product id or token cannot identify a grant and is rejected;
// enumeration paths skip it, the event path surfaces it instead.
func toPurchase(native *Purchase) (*billing.Purchase, error) {
	if native.ProductID == "" {
		return nil, errors.New("native purchase record missing product id")
	}
	if native.PurchaseToken == "" {
		return nil, errors.New("native purchase record missing purchase token")
	}

	var state billing.PurchaseState
	switch native.PurchaseState {
	case NativeStatePurchased:
		state = billing.PurchaseStatePurchased
	case NativeStatePending:
		state = billing.PurchaseStatePaymentPending
	default:
		state = billing.PurchaseStateUnknown
	}

	return &billing.Purchase{
		ID:                 native.OrderID,
		ProductID:          native.ProductID,
		PurchaseToken:      native.PurchaseToken,
		TransactionDateUTC: time.UnixMilli(native.PurchaseTime).UTC(),
		State:              state,
		AutoRenewing:       native.AutoRenewing,
		Payload:            native.ObfuscatedAccountID,
		SignedData:         native.OriginalJSON,
		Signature:          native.Signature,
	}, nil
}

func toProduct(details *SkuDetails) *billing.Product {
	localized := details.Price
	if localized == "" {
		localized = billing.FormatPrice(details.PriceAmountMicros, details.PriceCurrencyCode)
	}

	return &billing.Product{
		ProductID:      details.Sku,
		DisplayName:    details.Title,
		Description:    details.Description,
		LocalizedPrice: localized,
		PriceMicros:    details.PriceAmountMicros,
		CurrencyCode:   details.PriceCurrencyCode,
	}
}
