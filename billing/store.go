package billing

import (
	"context"
	"errors"
	"time"
)

var (
	ErrExists   = errors.New("purchase record already exists")
	ErrNotFound = errors.New("purchase record not found")
)

type VerificationState uint8

const (
	VerificationUnknown VerificationState = iota
	VerificationPending
	VerificationPassed
	VerificationFailed
)

// Record is a persisted purchase. Purchases that fail external verification
// are stored rather than discarded so a retry/finalize path exists.
type Record struct {
	Purchase     *Purchase
	ItemType     ItemType
	Verification VerificationState
	CreatedAt    time.Time
}

func (r *Record) Clone() *Record {
	return &Record{
		Purchase:     r.Purchase.Clone(),
		ItemType:     r.ItemType,
		Verification: r.Verification,
		CreatedAt:    r.CreatedAt,
	}
}

type Store interface {
	// CreateRecord persists a purchase record. Returns ErrExists when a
	// record for the same (ProductID, PurchaseToken) grant already exists.
	CreateRecord(ctx context.Context, record *Record) error

	// GetRecord returns the record for a grant, or ErrNotFound.
	GetRecord(ctx context.Context, productID, purchaseToken string) (*Record, error)

	// ListByVerification returns all records in the given verification
	// state, ordered by creation time ascending.
	ListByVerification(ctx context.Context, state VerificationState) ([]*Record, error)

	// SetVerification transitions a record's verification state. Returns
	// ErrNotFound when no such grant is stored.
	SetVerification(ctx context.Context, productID, purchaseToken string, state VerificationState) error

	// MarkConsumed records the terminal consumption transition for a grant.
	MarkConsumed(ctx context.Context, productID, purchaseToken string) error
}
