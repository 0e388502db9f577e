package android

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/billing-client/billing"
)

func TestClassifyResponse_Totality(t *testing.T) {
	expected := map[int]billing.ErrorKind{
		ResponseServiceTimeout:      billing.ErrorServiceTimeout,
		ResponseFeatureNotSupported: billing.ErrorFeatureNotSupported,
		ResponseServiceDisconnected: billing.ErrorServiceDisconnected,
		ResponseUserCanceled:        billing.ErrorUserCancelled,
		ResponseServiceUnavailable:  billing.ErrorServiceUnavailable,
		ResponseBillingUnavailable:  billing.ErrorBillingUnavailable,
		ResponseItemUnavailable:     billing.ErrorItemUnavailable,
		ResponseDeveloperError:      billing.ErrorDeveloper,
		ResponseError:               billing.ErrorGeneral,
		ResponseItemAlreadyOwned:    billing.ErrorAlreadyOwned,
		ResponseItemNotOwned:        billing.ErrorNotOwned,
		ResponseNetworkError:        billing.ErrorNetwork,
	}

	for code, kind := range expected {
		require.Equal(t, kind, classifyResponse(code), "code %d", code)
	}

	// Codes never seen before must degrade, not crash
	for _, code := range []int{-99, 9, 10, 11, 13, 255} {
		require.Equal(t, billing.ErrorGeneral, classifyResponse(code), "code %d", code)
	}
}

func TestToPurchase(t *testing.T) {
	native := &Purchase{
		OrderID:             "GPA.1234-5678",
		ProductID:           "sku1",
		PurchaseToken:       "tok-1",
		PurchaseTime:        1685577600000, // 2023-06-01T00:00:00Z
		PurchaseState:       NativeStatePurchased,
		AutoRenewing:        true,
		ObfuscatedAccountID: "caller-1",
		OriginalJSON:        `{"productId":"sku1"}`,
		Signature:           "sig",
	}

	p, err := toPurchase(native)
	require.NoError(t, err)
	require.Equal(t, "GPA.1234-5678", p.ID)
	require.Equal(t, "sku1", p.ProductID)
	require.Equal(t, "tok-1", p.PurchaseToken)
	require.True(t, p.TransactionDateUTC.Equal(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, billing.PurchaseStatePurchased, p.State)
	require.True(t, p.AutoRenewing)
	require.Equal(t, "caller-1", p.Payload)

	native.PurchaseState = NativeStatePending
	p, err = toPurchase(native)
	require.NoError(t, err)
	require.Equal(t, billing.PurchaseStatePaymentPending, p.State)

	// Records missing grant identity are rejected
	_, err = toPurchase(&Purchase{PurchaseToken: "tok-1"})
	require.Error(t, err)
	_, err = toPurchase(&Purchase{ProductID: "sku1"})
	require.Error(t, err)
}

func TestToProduct_SynthesizesLocalizedPrice(t *testing.T) {
	details := &SkuDetails{
		Sku:               "sku1",
		Title:             "Gold Pack",
		PriceAmountMicros: 990_000,
		PriceCurrencyCode: "USD",
	}

	p := toProduct(details)
	require.Equal(t, "sku1", p.ProductID)
	require.NotEmpty(t, p.LocalizedPrice)

	// A backend-provided price string is kept verbatim
	details.Price = "0,99 €"
	require.Equal(t, "0,99 €", toProduct(details).LocalizedPrice)
}

func TestTokenFromSignedData(t *testing.T) {
	token, err := tokenFromSignedData(`{"productId":"sku1","purchaseToken":"tok-1"}`)
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)

	_, err = tokenFromSignedData(`{}`)
	require.Error(t, err)
	_, err = tokenFromSignedData(`not json`)
	require.Error(t, err)
}
