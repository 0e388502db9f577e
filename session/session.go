// Package session implements the purchase-transaction reconciliation engine
// shared by every platform backend: a connection lifecycle, a single-flight
// purchase slot, an event correlator, and result verification.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/billing"
	"github.com/code-payments/billing-client/event"
	"github.com/code-payments/billing-client/query"
	"github.com/code-payments/billing-client/verify"
)

const (
	streamTimeout = time.Second

	// resolvedGrantTTL bounds how long a resolved grant is remembered for
	// duplicate absorption. Well beyond any observed redelivery window.
	resolvedGrantTTL = 10 * time.Minute
)

type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// Session owns a single logical connection to a store backend. The backend
// handle is exclusively the session's; at most one purchase request may be
// outstanding at a time, enforced here rather than by the backend.
type Session struct {
	log     *zap.Logger
	backend backend.Backend

	verifier verify.Verifier
	store    billing.Store

	purchaseTimeout time.Duration

	updates    *event.Bus[string, *backend.Event]
	correlator *correlator

	subscribed bool

	stateMu sync.Mutex
	state   State

	id string
}

type Option func(*Session)

// WithVerifier installs an external purchase verifier, called after every
// resolved purchase. A false verdict fails the purchase with
// billing.ErrorPaymentInvalid; when a store is also installed the purchase is
// persisted first so it can be finalized later.
func WithVerifier(v verify.Verifier) Option {
	return func(s *Session) {
		s.verifier = v
	}
}

// WithStore installs a purchase record store used to persist verification
// outcomes and consumption transitions.
func WithStore(store billing.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithPurchaseTimeout bounds how long a purchase call may stay suspended.
// Zero (the default) leaves the bound to the caller's context.
func WithPurchaseTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.purchaseTimeout = d
	}
}

func NewSession(log *zap.Logger, b backend.Backend, opts ...Option) *Session {
	s := &Session{
		log:     log,
		backend: b,
		updates: event.NewBus[string, *backend.Event](),
		id:      uuid.NewString(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = log.With(zap.String("session_id", s.id))
	s.correlator = newCorrelator(s.log, b.SupportsCorrelationToken(), s.updates, resolvedGrantTTL)

	return s
}

// Updates is the out-of-band purchases-updated channel: restored events and
// completions nobody was waiting on (deferred approvals, family sharing,
// promotional redemptions) land here.
func (s *Session) Updates() *event.Bus[string, *backend.Event] {
	return s.updates
}

// WatchUpdates exposes the out-of-band channel as a buffered Go channel.
// The returned stop function detaches the watcher from the bus and closes the
// channel; a watcher that falls more than bufferSize events behind is closed
// rather than allowed to block delivery.
func (s *Session) WatchUpdates(bufferSize int) (<-chan *backend.Event, func()) {
	stream := event.NewSelectorStream(
		uuid.NewString(),
		bufferSize,
		func(e *backend.Event) (*backend.Event, bool) {
			return e, true
		},
	)

	remove := s.updates.AddHandler(event.HandlerFunc[string, *backend.Event](func(_ string, e *backend.Event) {
		_ = stream.Notify(e, streamTimeout)
	}))

	return stream.Channel(), func() {
		remove()
		stream.Close()
	}
}

// Connect establishes the backend binding. Idempotent when already
// connected. A backend that cannot be reached yields
// billing.ErrorServiceUnavailable; a reachable backend that rejects the
// binding keeps its own classification.
func (s *Session) Connect(ctx context.Context) error {
	s.stateMu.Lock()
	if s.state == StateConnected {
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.stateMu.Unlock()

	if err := s.backend.Connect(ctx); err != nil {
		s.stateMu.Lock()
		s.state = StateDisconnected
		s.stateMu.Unlock()

		return classify(err, billing.ErrorServiceUnavailable, "failed to connect to store backend")
	}

	s.stateMu.Lock()
	// Subscribe exactly once for the life of the session, surviving
	// reconnects. The correlator is the only observer the backend sees.
	if !s.subscribed {
		s.backend.SubscribeToTransactionEvents(s.correlator)
		s.subscribed = true
	}
	s.state = StateConnected
	s.stateMu.Unlock()

	s.log.Debug("Session connected")

	return nil
}

// Disconnect tears down the backend binding and cancels any suspended
// purchase call with a cancelled outcome. Safe to call when never connected.
func (s *Session) Disconnect() error {
	s.stateMu.Lock()
	if s.state == StateDisconnected {
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	s.stateMu.Unlock()

	s.correlator.cancelPending(billing.ErrPurchaseCancelled)

	s.log.Debug("Session disconnected")

	return s.backend.Disconnect()
}

func (s *Session) CurrentState() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) requireConnected() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.state != StateConnected {
		return billing.ErrNotConnected
	}
	return nil
}

// Purchase launches a purchase flow and suspends until the backend reports a
// terminal outcome for it. correlationToken is echoed back by backends that
// support one and is used to tell this flow apart from other activity for
// the same product; pass empty to match on product id alone.
//
// Exactly one purchase may be in flight per session: a second call while the
// first is suspended fails fast with billing.ErrPurchaseInFlight without
// touching the backend.
func (s *Session) Purchase(ctx context.Context, productID string, itemType billing.ItemType, correlationToken string) (*billing.Purchase, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	log := s.log.With(
		zap.String("product_id", productID),
		zap.String("item_type", itemType.String()),
	)

	pending := newPendingRequest(productID, itemType, correlationToken)
	if err := s.correlator.setPending(pending); err != nil {
		return nil, err
	}

	// Re-check after attaching: a disconnect racing the attach must not
	// leave this request suspended with nobody to cancel it.
	if err := s.requireConnected(); err != nil {
		s.correlator.clearPending(pending)
		return nil, err
	}

	err := s.backend.LaunchPurchase(ctx, backend.PurchaseParams{
		ProductID:        productID,
		ItemType:         itemType,
		CorrelationToken: correlationToken,
	})
	if err != nil {
		s.correlator.clearPending(pending)

		// Owning the item already is not a failure: resolve from the
		// existing grant instead of a second purchase flow.
		if billing.IsKind(err, billing.ErrorAlreadyOwned) {
			log.Debug("Product already owned, resolving from owned purchases")
			return s.resolveAlreadyOwned(ctx, productID, itemType, correlationToken)
		}

		log.Warn("Failed to launch purchase flow", zap.Error(err))
		return nil, classify(err, billing.ErrorGeneral, "failed to launch purchase flow")
	}

	waitCtx := ctx
	if s.purchaseTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.purchaseTimeout)
		defer cancel()
	}

	purchase, err := pending.wait(waitCtx)
	s.correlator.clearPending(pending)

	if err != nil {
		if billing.IsKind(err, billing.ErrorUserCancelled) {
			log.Debug("Purchase cancelled")
		} else {
			log.Warn("Purchase failed", zap.Error(err))
		}
		return nil, err
	}

	return s.verified(ctx, purchase, itemType)
}

func (s *Session) resolveAlreadyOwned(ctx context.Context, productID string, itemType billing.ItemType, correlationToken string) (*billing.Purchase, error) {
	owned, err := s.backend.QueryOwnedPurchases(ctx, itemType)
	if err != nil {
		return nil, classify(err, billing.ErrorRestoreFailed, "failed to look up owned purchases")
	}

	for _, p := range billing.Deduplicate(owned) {
		if p.ProductID != productID {
			continue
		}
		if s.backend.SupportsCorrelationToken() && correlationToken != "" && p.Payload != correlationToken {
			continue
		}

		s.correlator.markResolved(p.ProductID, p.PurchaseToken)
		return s.verified(ctx, p, itemType)
	}

	return nil, billing.NewError(billing.ErrorAlreadyOwned, "backend reports the product owned but no grant was found")
}

// verified runs the external verifier over a resolved purchase. A failing
// purchase is persisted before the error returns so a finalize path exists.
func (s *Session) verified(ctx context.Context, purchase *billing.Purchase, itemType billing.ItemType) (*billing.Purchase, error) {
	if s.verifier == nil {
		s.persist(ctx, purchase, itemType, billing.VerificationUnknown)
		return purchase, nil
	}

	ok, err := s.verifier.VerifyPurchase(ctx, &verify.Request{
		ProductID:     purchase.ProductID,
		TransactionID: purchase.ID,
		SignedData:    purchase.SignedData,
		Signature:     purchase.Signature,
	})
	if err != nil {
		return nil, billing.WrapError(billing.ErrorGeneral, err, "purchase verification errored")
	}

	if !ok {
		s.log.Warn("Purchase failed verification",
			zap.String("product_id", purchase.ProductID),
		)
		s.persist(ctx, purchase, itemType, billing.VerificationFailed)
		return nil, billing.NewError(billing.ErrorPaymentInvalid, "purchase failed verification")
	}

	s.persist(ctx, purchase, itemType, billing.VerificationPassed)
	return purchase, nil
}

// persist is best effort; the store is an optional collaborator and a write
// failure must not turn a completed purchase into an error.
func (s *Session) persist(ctx context.Context, purchase *billing.Purchase, itemType billing.ItemType, verification billing.VerificationState) {
	if s.store == nil {
		return
	}

	err := s.store.CreateRecord(ctx, &billing.Record{
		Purchase:     purchase.Clone(),
		ItemType:     itemType,
		Verification: verification,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, billing.ErrExists) {
		s.log.Warn("Failed to persist purchase record", zap.Error(err))
	}
}

// GetProducts queries the backend catalog for product snapshots.
func (s *Session) GetProducts(ctx context.Context, productIDs []string, itemType billing.ItemType) ([]*billing.Product, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	products, err := s.backend.QueryProducts(ctx, productIDs, itemType)
	if err != nil {
		return nil, classify(err, billing.ErrorProductRequestFailed, "product query failed")
	}
	return products, nil
}

// GetPurchases enumerates currently owned purchases, deduplicated by grant.
func (s *Session) GetPurchases(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	owned, err := s.backend.QueryOwnedPurchases(ctx, itemType)
	if err != nil {
		return nil, classify(err, billing.ErrorGeneral, "owned purchase query failed")
	}
	return billing.Deduplicate(owned), nil
}

// GetPurchaseHistory enumerates historical purchases, deduplicated by grant,
// with optional limit, minimum date, and ordering.
func (s *Session) GetPurchaseHistory(ctx context.Context, itemType billing.ItemType, opts ...query.Option) ([]*billing.Purchase, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	history, err := s.backend.QueryPurchaseHistory(ctx, itemType)
	if err != nil {
		return nil, classify(err, billing.ErrorGeneral, "purchase history query failed")
	}

	applied := query.ApplyOptions(opts...)

	deduped := billing.Deduplicate(history)

	filtered := deduped[:0]
	for _, p := range deduped {
		if !applied.Since.IsZero() && p.TransactionDateUTC.Before(applied.Since) {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if applied.Order == query.Descending {
			return filtered[i].TransactionDateUTC.After(filtered[j].TransactionDateUTC)
		}
		return filtered[i].TransactionDateUTC.Before(filtered[j].TransactionDateUTC)
	})

	if applied.Limit > 0 && len(filtered) > applied.Limit {
		filtered = filtered[:applied.Limit]
	}

	return filtered, nil
}

// Restore merges owned and historical purchases into one deduplicated set of
// restored grants.
func (s *Session) Restore(ctx context.Context, itemType billing.ItemType) ([]*billing.Purchase, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	owned, err := s.backend.QueryOwnedPurchases(ctx, itemType)
	if err != nil {
		return nil, classify(err, billing.ErrorRestoreFailed, "restore failed querying owned purchases")
	}

	history, err := s.backend.QueryPurchaseHistory(ctx, itemType)
	if err != nil {
		return nil, classify(err, billing.ErrorRestoreFailed, "restore failed querying purchase history")
	}

	merged := billing.Deduplicate(append(owned, history...))

	restored := make([]*billing.Purchase, 0, len(merged))
	for _, p := range merged {
		clone := p.Clone()
		clone.State = billing.PurchaseStateRestored
		restored = append(restored, clone)
	}

	return restored, nil
}

// Consume marks a consumable grant fulfilled with the backend so the product
// can be purchased again.
func (s *Session) Consume(ctx context.Context, productID, purchaseToken string) error {
	if err := s.requireConnected(); err != nil {
		return err
	}

	if err := s.backend.Consume(ctx, productID, purchaseToken); err != nil {
		return classify(err, billing.ErrorGeneral, "consume failed")
	}

	if s.store != nil {
		err := s.store.MarkConsumed(ctx, productID, purchaseToken)
		if err != nil && !errors.Is(err, billing.ErrNotFound) {
			s.log.Warn("Failed to record consumption", zap.Error(err))
		}
	}

	return nil
}

// Acknowledge confirms a grant with the backend, preventing its automatic
// refund on platforms that require acknowledgement.
func (s *Session) Acknowledge(ctx context.Context, purchaseToken string) error {
	if err := s.requireConnected(); err != nil {
		return err
	}

	if err := s.backend.Acknowledge(ctx, purchaseToken); err != nil {
		return classify(err, billing.ErrorGeneral, "acknowledge failed")
	}
	return nil
}

// FinalizePending re-runs verification over stored purchases that previously
// failed it and promotes the ones that now pass. Returns the promoted
// purchases.
func (s *Session) FinalizePending(ctx context.Context) ([]*billing.Purchase, error) {
	if s.store == nil || s.verifier == nil {
		return nil, billing.NewError(billing.ErrorFeatureNotSupported, "finalize requires a store and a verifier")
	}

	records, err := s.store.ListByVerification(ctx, billing.VerificationFailed)
	if err != nil {
		return nil, classify(err, billing.ErrorGeneral, "failed to list unverified purchases")
	}

	var promoted []*billing.Purchase
	for _, record := range records {
		p := record.Purchase

		ok, err := s.verifier.VerifyPurchase(ctx, &verify.Request{
			ProductID:     p.ProductID,
			TransactionID: p.ID,
			SignedData:    p.SignedData,
			Signature:     p.Signature,
		})
		if err != nil || !ok {
			continue
		}

		err = s.store.SetVerification(ctx, p.ProductID, p.PurchaseToken, billing.VerificationPassed)
		if err != nil {
			s.log.Warn("Failed to promote verified purchase", zap.Error(err))
			continue
		}

		promoted = append(promoted, p)
	}

	return promoted, nil
}

// classify preserves an existing billing classification and wraps anything
// else with the fallback kind, so callers always receive a typed failure.
func classify(err error, fallback billing.ErrorKind, message string) error {
	var be *billing.Error
	if errors.As(err, &be) {
		return be
	}
	return billing.WrapError(fallback, err, message)
}
