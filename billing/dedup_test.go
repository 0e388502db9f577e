package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeduplicate_KeepsLatestDate(t *testing.T) {
	older := &Purchase{
		ProductID:          "sku1",
		PurchaseToken:      "tok-1",
		TransactionDateUTC: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := &Purchase{
		ProductID:          "sku1",
		PurchaseToken:      "tok-1",
		TransactionDateUTC: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	deduped := Deduplicate([]*Purchase{older, newer})
	require.Len(t, deduped, 1)
	require.True(t, deduped[0].TransactionDateUTC.Equal(newer.TransactionDateUTC))

	// Order of delivery must not matter
	deduped = Deduplicate([]*Purchase{newer, older})
	require.Len(t, deduped, 1)
	require.True(t, deduped[0].TransactionDateUTC.Equal(newer.TransactionDateUTC))
}

func TestDeduplicate_DistinctGrantsKept(t *testing.T) {
	purchases := []*Purchase{
		{ProductID: "sku1", PurchaseToken: "tok-1"},
		{ProductID: "sku1", PurchaseToken: "tok-2"},
		{ProductID: "sku2", PurchaseToken: "tok-1"},
	}

	deduped := Deduplicate(purchases)
	require.Len(t, deduped, 3)
	require.Equal(t, purchases, deduped)
}

func TestDeduplicate_Idempotent(t *testing.T) {
	purchases := []*Purchase{
		{ProductID: "sku1", PurchaseToken: "tok-1", TransactionDateUTC: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ProductID: "sku1", PurchaseToken: "tok-1", TransactionDateUTC: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ProductID: "sku2", PurchaseToken: "tok-9"},
		nil,
	}

	once := Deduplicate(purchases)
	twice := Deduplicate(once)
	require.Equal(t, once, twice)
	require.Len(t, once, 2)
}

func TestDeduplicate_Empty(t *testing.T) {
	require.Empty(t, Deduplicate(nil))
	require.Len(t, Deduplicate([]*Purchase{{ProductID: "sku1"}}), 1)
}
