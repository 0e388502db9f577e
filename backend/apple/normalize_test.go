package apple

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/billing-client/billing"
)

func TestFromAppleTime(t *testing.T) {
	require.True(t, fromAppleTime(0).Equal(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)))

	// 2023-06-01T00:00:00Z is 707,443,200 seconds after the reference date
	require.True(t, fromAppleTime(707_443_200).Equal(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestClassifySKError_Totality(t *testing.T) {
	expected := map[int]billing.ErrorKind{
		SKErrorUnknown:                             billing.ErrorGeneral,
		SKErrorClientInvalid:                       billing.ErrorBillingUnavailable,
		SKErrorPaymentCancelled:                    billing.ErrorUserCancelled,
		SKErrorPaymentInvalid:                      billing.ErrorPaymentInvalid,
		SKErrorPaymentNotAllowed:                   billing.ErrorPaymentNotAllowed,
		SKErrorStoreProductNotAvailable:            billing.ErrorItemUnavailable,
		SKErrorCloudServicePermissionDenied:        billing.ErrorServiceUnavailable,
		SKErrorCloudServiceNetworkConnectionFailed: billing.ErrorNetwork,
		SKErrorCloudServiceRevoked:                 billing.ErrorPaymentNotAllowed,
	}

	for code, kind := range expected {
		require.Equal(t, kind, classifySKError(code), "code %d", code)
	}

	for _, code := range []int{-1, 9, 42, 255} {
		require.Equal(t, billing.ErrorGeneral, classifySKError(code), "code %d", code)
	}
}

func TestToPurchase_TokenFallbacks(t *testing.T) {
	// Original transaction id is the durable grant credential
	p, err := toPurchase(&Transaction{
		TransactionID:         "txn-2",
		OriginalTransactionID: "txn-1",
		ProductID:             "sku1",
		State:                 NativeStatePurchased,
	})
	require.NoError(t, err)
	require.Equal(t, "txn-1", p.PurchaseToken)
	require.Equal(t, "txn-2", p.ID)

	// Fall back to the transaction id
	p, err = toPurchase(&Transaction{
		TransactionID: "txn-2",
		ProductID:     "sku1",
		State:         NativeStateRestored,
	})
	require.NoError(t, err)
	require.Equal(t, "txn-2", p.PurchaseToken)
	require.Equal(t, billing.PurchaseStateRestored, p.State)

	// No identifiers at all: synthesize from the receipt blob
	p, err = toPurchase(&Transaction{
		ProductID: "sku1",
		State:     NativeStatePurchased,
		Receipt:   "bm90LWEtcmVhbC1yZWNlaXB0",
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.PurchaseToken)

	// Token synthesis is deterministic
	p2, err := toPurchase(&Transaction{
		ProductID: "sku1",
		State:     NativeStatePurchased,
		Receipt:   "bm90LWEtcmVhbC1yZWNlaXB0",
	})
	require.NoError(t, err)
	require.Equal(t, p.PurchaseToken, p2.PurchaseToken)

	// Nothing to identify the grant with
	_, err = toPurchase(&Transaction{ProductID: "sku1"})
	require.Error(t, err)
	_, err = toPurchase(&Transaction{TransactionID: "txn-1"})
	require.Error(t, err)
}

func TestToProduct_MicrosConversion(t *testing.T) {
	p := toProduct(&ProductDetails{
		ProductID:      "sku1",
		Title:          "Gold Pack",
		LocalizedPrice: "$0.99",
		Price:          0.99,
		CurrencyCode:   "USD",
	})
	require.Equal(t, int64(990_000), p.PriceMicros)
	require.Equal(t, "$0.99", p.LocalizedPrice)

	// Localized price synthesized when the native layer gives none
	p = toProduct(&ProductDetails{ProductID: "sku1", Price: 1.50, CurrencyCode: "USD"})
	require.Equal(t, int64(1_500_000), p.PriceMicros)
	require.NotEmpty(t, p.LocalizedPrice)
}
