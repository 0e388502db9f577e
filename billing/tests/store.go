package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/billing-client/billing"
)

func RunStoreTests(t *testing.T, s billing.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s billing.Store){
		testStore_HappyPath,
		testStore_VerificationRetry,
		testStore_Consumption,
	} {
		tf(t, s)
		teardown()
	}
}

func testStore_HappyPath(t *testing.T, store billing.Store) {
	ctx := context.Background()

	expected := &billing.Record{
		Purchase: &billing.Purchase{
			ID:                 "order-1",
			ProductID:          "sku1",
			PurchaseToken:      "tok-1",
			TransactionDateUTC: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			State:              billing.PurchaseStatePurchased,
			Payload:            "payload-1",
		},
		ItemType:     billing.ItemTypeInAppPurchase,
		Verification: billing.VerificationPassed,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := store.GetRecord(ctx, "sku1", "tok-1")
	require.Equal(t, billing.ErrNotFound, err)

	require.NoError(t, store.CreateRecord(ctx, expected))

	actual, err := store.GetRecord(ctx, "sku1", "tok-1")
	require.NoError(t, err)
	require.Equal(t, expected.Purchase.ID, actual.Purchase.ID)
	require.Equal(t, expected.Purchase.ProductID, actual.Purchase.ProductID)
	require.Equal(t, expected.Purchase.PurchaseToken, actual.Purchase.PurchaseToken)
	require.Equal(t, expected.Purchase.State, actual.Purchase.State)
	require.Equal(t, expected.Purchase.Payload, actual.Purchase.Payload)
	require.Equal(t, expected.ItemType, actual.ItemType)
	require.Equal(t, expected.Verification, actual.Verification)
	require.True(t, expected.Purchase.TransactionDateUTC.Equal(actual.Purchase.TransactionDateUTC))

	require.Equal(t, billing.ErrExists, store.CreateRecord(ctx, expected))
}

func testStore_VerificationRetry(t *testing.T, store billing.Store) {
	ctx := context.Background()

	require.Equal(t, billing.ErrNotFound, store.SetVerification(ctx, "sku1", "tok-1", billing.VerificationPassed))

	for i, token := range []string{"tok-a", "tok-b"} {
		require.NoError(t, store.CreateRecord(ctx, &billing.Record{
			Purchase: &billing.Purchase{
				ProductID:          "sku1",
				PurchaseToken:      token,
				TransactionDateUTC: time.Now().UTC(),
				State:              billing.PurchaseStatePaymentPending,
			},
			ItemType:     billing.ItemTypeInAppPurchase,
			Verification: billing.VerificationFailed,
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	failed, err := store.ListByVerification(ctx, billing.VerificationFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	require.Equal(t, "tok-a", failed[0].Purchase.PurchaseToken)
	require.Equal(t, "tok-b", failed[1].Purchase.PurchaseToken)

	require.NoError(t, store.SetVerification(ctx, "sku1", "tok-a", billing.VerificationPassed))

	failed, err = store.ListByVerification(ctx, billing.VerificationFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "tok-b", failed[0].Purchase.PurchaseToken)

	passed, err := store.ListByVerification(ctx, billing.VerificationPassed)
	require.NoError(t, err)
	require.Len(t, passed, 1)
	require.Equal(t, "tok-a", passed[0].Purchase.PurchaseToken)
}

func testStore_Consumption(t *testing.T, store billing.Store) {
	ctx := context.Background()

	require.Equal(t, billing.ErrNotFound, store.MarkConsumed(ctx, "sku1", "tok-1"))

	require.NoError(t, store.CreateRecord(ctx, &billing.Record{
		Purchase: &billing.Purchase{
			ProductID:          "sku1",
			PurchaseToken:      "tok-1",
			TransactionDateUTC: time.Now().UTC(),
			State:              billing.PurchaseStatePurchased,
		},
		ItemType:     billing.ItemTypeInAppPurchase,
		Verification: billing.VerificationPassed,
		CreatedAt:    time.Now().UTC(),
	}))

	require.NoError(t, store.MarkConsumed(ctx, "sku1", "tok-1"))

	actual, err := store.GetRecord(ctx, "sku1", "tok-1")
	require.NoError(t, err)
	require.Equal(t, billing.ConsumptionStateConsumed, actual.Purchase.ConsumptionState)
}
