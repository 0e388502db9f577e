package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/code-payments/billing-client/billing"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*billing.Record
}

func NewInMemory() billing.Store {
	return &InMemoryStore{
		records: map[string]*billing.Record{},
	}
}

func (s *InMemoryStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*billing.Record)
}

func grantKey(productID, purchaseToken string) string {
	return productID + "|" + purchaseToken
}

func (s *InMemoryStore) CreateRecord(ctx context.Context, record *billing.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(record.Purchase.ProductID, record.Purchase.PurchaseToken)

	_, ok := s.records[key]
	if ok {
		return billing.ErrExists
	}

	s.records[key] = record.Clone()

	return nil
}

func (s *InMemoryStore) GetRecord(ctx context.Context, productID, purchaseToken string) (*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[grantKey(productID, purchaseToken)]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) ListByVerification(ctx context.Context, state billing.VerificationState) ([]*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*billing.Record
	for _, record := range s.records {
		if record.Verification == state {
			result = append(result, record.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *InMemoryStore) SetVerification(ctx context.Context, productID, purchaseToken string, state billing.VerificationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[grantKey(productID, purchaseToken)]
	if !ok {
		return billing.ErrNotFound
	}

	record.Verification = state

	return nil
}

func (s *InMemoryStore) MarkConsumed(ctx context.Context, productID, purchaseToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[grantKey(productID, purchaseToken)]
	if !ok {
		return billing.ErrNotFound
	}

	record.Purchase.ConsumptionState = billing.ConsumptionStateConsumed

	return nil
}
