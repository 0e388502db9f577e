package android

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

type fakeClient struct {
	Client

	purchases []Purchase
	listener  PurchasesUpdatedListener
}

func (c *fakeClient) StartConnection(ctx context.Context) (int, error) {
	return ResponseOK, nil
}

func (c *fakeClient) QueryPurchases(ctx context.Context, skuType string) ([]Purchase, int, error) {
	return c.purchases, ResponseOK, nil
}

func (c *fakeClient) SetPurchasesUpdatedListener(listener PurchasesUpdatedListener) {
	c.listener = listener
}

func TestBackend_EnumerationSkipsMalformedRecords(t *testing.T) {
	client := &fakeClient{
		purchases: []Purchase{
			{ProductID: "sku1", PurchaseToken: "tok-1", PurchaseState: NativeStatePurchased},
			{ProductID: "", PurchaseToken: "tok-broken"}, // malformed
			{ProductID: "sku2", PurchaseToken: "tok-2", PurchaseState: NativeStatePurchased},
		},
	}

	b := NewBackend(zap.Must(zap.NewDevelopment()), client)

	owned, err := b.QueryOwnedPurchases(context.Background(), billing.ItemTypeInAppPurchase)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, "sku1", owned[0].ProductID)
	require.Equal(t, "sku2", owned[1].ProductID)
}

func TestBackend_EventNormalization(t *testing.T) {
	client := &fakeClient{}
	b := NewBackend(zap.Must(zap.NewDevelopment()), client)

	var received []*backend.Event
	b.SubscribeToTransactionEvents(backend.HandlerFunc(func(events []*backend.Event) {
		received = append(received, events...)
	}))
	require.NotNil(t, client.listener)

	// Successful update
	client.listener(ResponseOK, []Purchase{
		{ProductID: "sku1", PurchaseToken: "tok-1", PurchaseState: NativeStatePurchased},
	})
	require.Len(t, received, 1)
	require.Nil(t, received[0].Err)
	require.Equal(t, "sku1", received[0].Purchase.ProductID)

	// User backing out of the native sheet
	received = nil
	client.listener(ResponseUserCanceled, nil)
	require.Len(t, received, 1)
	require.True(t, billing.IsKind(received[0].Err, billing.ErrorUserCancelled))

	// A record the caller is actively waiting on that cannot be decoded
	// must surface as a failure, not vanish
	received = nil
	client.listener(ResponseOK, []Purchase{{ProductID: "sku1"}})
	require.Len(t, received, 1)
	require.True(t, billing.IsKind(received[0].Err, billing.ErrorGeneral))
	require.Equal(t, "sku1", received[0].Purchase.ProductID)
}
