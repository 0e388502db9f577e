package windows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

type fakeStoreContext struct {
	StoreContext

	receiptXML     string
	purchaseResult *PurchaseResult
	fulfilled      []string
}

func (f *fakeStoreContext) Connect(ctx context.Context) error { return nil }
func (f *fakeStoreContext) Close() error                      { return nil }

func (f *fakeStoreContext) RequestPurchase(ctx context.Context, productID string) (*PurchaseResult, error) {
	return f.purchaseResult, nil
}

func (f *fakeStoreContext) GetAppReceipt(ctx context.Context) (string, error) {
	return f.receiptXML, nil
}

func (f *fakeStoreContext) ReportFulfillment(ctx context.Context, productID, transactionID string) error {
	f.fulfilled = append(f.fulfilled, productID+"|"+transactionID)
	return nil
}

func collectEvents(b *Backend) *[][]*backend.Event {
	var batches [][]*backend.Event
	b.SubscribeToTransactionEvents(backend.HandlerFunc(func(events []*backend.Event) {
		batches = append(batches, events)
	}))
	return &batches
}

func TestWindowsBackend_PurchaseSucceeded(t *testing.T) {
	store := &fakeStoreContext{
		purchaseResult: &PurchaseResult{
			Status:     StatusSucceeded,
			ReceiptXML: testReceipt,
		},
	}
	b := NewBackend(zap.Must(zap.NewDevelopment()), store)
	batches := collectEvents(b)

	err := b.LaunchPurchase(context.Background(), backend.PurchaseParams{
		ProductID: "sku1",
		ItemType:  billing.ItemTypeInAppPurchase,
	})
	require.NoError(t, err)

	require.Len(t, *batches, 1)
	events := (*batches)[0]
	require.Len(t, events, 1)
	require.Nil(t, events[0].Err)
	require.Equal(t, "sku1", events[0].Purchase.ProductID)
	require.Equal(t, "receipt-1", events[0].Purchase.PurchaseToken)
	require.Equal(t, billing.PurchaseStatePurchased, events[0].Purchase.State)
}

func TestWindowsBackend_PurchaseDeclined(t *testing.T) {
	store := &fakeStoreContext{
		purchaseResult: &PurchaseResult{Status: StatusNotPurchased},
	}
	b := NewBackend(zap.Must(zap.NewDevelopment()), store)
	batches := collectEvents(b)

	err := b.LaunchPurchase(context.Background(), backend.PurchaseParams{ProductID: "sku1"})
	require.NoError(t, err)

	require.Len(t, *batches, 1)
	events := (*batches)[0]
	require.Len(t, events, 1)
	require.Equal(t, billing.ErrorUserCancelled, billing.Kind(events[0].Err))
	require.Equal(t, "sku1", events[0].Purchase.ProductID)
}

func TestWindowsBackend_PurchaseAlreadyOwned(t *testing.T) {
	store := &fakeStoreContext{
		purchaseResult: &PurchaseResult{Status: StatusAlreadyPurchased},
	}
	b := NewBackend(zap.Must(zap.NewDevelopment()), store)
	batches := collectEvents(b)

	err := b.LaunchPurchase(context.Background(), backend.PurchaseParams{ProductID: "sku1"})
	require.Equal(t, billing.ErrorAlreadyOwned, billing.Kind(err))
	require.Empty(t, *batches)
}

func TestWindowsBackend_MalformedReceiptSurfaces(t *testing.T) {
	store := &fakeStoreContext{
		purchaseResult: &PurchaseResult{
			Status:     StatusSucceeded,
			ReceiptXML: "not xml <",
		},
	}
	b := NewBackend(zap.Must(zap.NewDevelopment()), store)
	batches := collectEvents(b)

	err := b.LaunchPurchase(context.Background(), backend.PurchaseParams{ProductID: "sku1"})
	require.NoError(t, err)

	require.Len(t, *batches, 1)
	events := (*batches)[0]
	require.Len(t, events, 1)
	require.Equal(t, billing.ErrorGeneral, billing.Kind(events[0].Err))
	require.Equal(t, "sku1", events[0].Purchase.ProductID)
}

func TestWindowsBackend_OwnedAndHistoryCoincide(t *testing.T) {
	store := &fakeStoreContext{receiptXML: testReceipt}
	b := NewBackend(zap.Must(zap.NewDevelopment()), store)

	owned, err := b.QueryOwnedPurchases(context.Background(), billing.ItemTypeInAppPurchase)
	require.NoError(t, err)
	require.Len(t, owned, 2)

	history, err := b.QueryPurchaseHistory(context.Background(), billing.ItemTypeInAppPurchase)
	require.NoError(t, err)
	require.Equal(t, owned, history)
}

func TestWindowsBackend_ConsumeReportsFulfillment(t *testing.T) {
	store := &fakeStoreContext{}
	b := NewBackend(zap.Must(zap.NewDevelopment()), store)

	require.NoError(t, b.Consume(context.Background(), "sku1", "receipt-1"))
	require.Equal(t, []string{"sku1|receipt-1"}, store.fulfilled)

	err := b.Acknowledge(context.Background(), "receipt-1")
	require.Equal(t, billing.ErrorFeatureNotSupported, billing.Kind(err))
}
