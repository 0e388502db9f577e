package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
)

func TestPendingRequest_FirstWriterWins(t *testing.T) {
	p := newPendingRequest("sku1", billing.ItemTypeInAppPurchase, "")

	first := &billing.Purchase{ProductID: "sku1", PurchaseToken: "tok-1"}
	second := &billing.Purchase{ProductID: "sku1", PurchaseToken: "tok-2"}

	require.True(t, p.resolve(first, nil))
	require.False(t, p.resolve(second, nil))
	require.False(t, p.resolve(nil, billing.ErrPurchaseCancelled))

	purchase, err := p.wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", purchase.PurchaseToken)
}

func TestPendingRequest_ConcurrentResolutionIsSingle(t *testing.T) {
	p := newPendingRequest("sku1", billing.ItemTypeInAppPurchase, "")

	var wins int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if p.resolve(&billing.Purchase{ProductID: "sku1"}, nil) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), wins)
}

func TestPendingRequest_ContextCancellation(t *testing.T) {
	p := newPendingRequest("sku1", billing.ItemTypeInAppPurchase, "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.wait(ctx)
	require.True(t, billing.IsKind(err, billing.ErrorUserCancelled))

	// A resolution racing the cancellation is a no-op
	require.False(t, p.resolve(&billing.Purchase{ProductID: "sku1"}, nil))
}

func TestPendingRequest_Matching(t *testing.T) {
	eventFor := func(productID, payload string) *backend.Event {
		return &backend.Event{
			Kind:     backend.EventStateChanged,
			Purchase: &billing.Purchase{ProductID: productID, Payload: payload},
		}
	}

	p := newPendingRequest("sku1", billing.ItemTypeInAppPurchase, "caller-1")

	// Product id must always line up
	require.False(t, p.matches(eventFor("sku2", "caller-1"), true))
	require.False(t, p.matches(eventFor("sku2", "caller-1"), false))

	// Token-aware backends require the echoed token too
	require.True(t, p.matches(eventFor("sku1", "caller-1"), true))
	require.False(t, p.matches(eventFor("sku1", "caller-2"), true))

	// Token-unaware backends accept the first product id hit
	require.True(t, p.matches(eventFor("sku1", "caller-2"), false))

	// An empty caller token matches anything for the product
	open := newPendingRequest("sku1", billing.ItemTypeInAppPurchase, "")
	require.True(t, open.matches(eventFor("sku1", "whoever"), true))
}
