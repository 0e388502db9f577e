package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-payments/billing-client/backend"
	"github.com/code-payments/billing-client/backend/android"
	"github.com/code-payments/billing-client/backend/apple"
	backendmemory "github.com/code-payments/billing-client/backend/memory"
	"github.com/code-payments/billing-client/billing"
	billingmemory "github.com/code-payments/billing-client/billing/memory"
	"github.com/code-payments/billing-client/catalog"
	"github.com/code-payments/billing-client/flags"
	"github.com/code-payments/billing-client/session"
	"github.com/code-payments/billing-client/verify"
)

// configuredVerifier picks the verifier matching the configured platform
// credentials. Play verification wins when both platforms are configured.
func configuredVerifier(cfg *flags.Config) verify.Verifier {
	switch {
	case cfg.AndroidServiceAccountJSON != "" && cfg.AndroidPackageName != "":
		return android.NewVerifier([]byte(cfg.AndroidServiceAccountJSON), cfg.AndroidPackageName)
	case cfg.AppleBundleID != "":
		return apple.NewVerifier(cfg.AppleBundleID)
	default:
		return nil
	}
}

// A small end-to-end walkthrough against the in-memory backend: connect,
// browse the catalog, buy a consumable, consume it.
func main() {
	log := zap.Must(zap.NewDevelopment())
	defer log.Sync()

	cfg, err := flags.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	b := backendmemory.NewBackend()
	b.SetCatalog(&billing.Product{
		ProductID:      "gold.pack.small",
		DisplayName:    "Small Gold Pack",
		LocalizedPrice: "$1.99",
		PriceMicros:    1_990_000,
		CurrencyCode:   "USD",
	})
	b.SetLaunchHook(func(params backend.PurchaseParams) error {
		granted := &billing.Purchase{
			ID:                 uuid.NewString(),
			ProductID:          params.ProductID,
			PurchaseToken:      uuid.NewString(),
			TransactionDateUTC: time.Now().UTC(),
			State:              billing.PurchaseStatePurchased,
			Payload:            params.CorrelationToken,
		}
		b.SetOwned(granted)
		b.EmitPurchased(granted)
		return nil
	})

	opts := []session.Option{
		session.WithStore(billingmemory.NewInMemory()),
	}
	if cfg.PurchaseTimeout > 0 {
		opts = append(opts, session.WithPurchaseTimeout(cfg.PurchaseTimeout))
	}
	if v := configuredVerifier(cfg); v != nil {
		opts = append(opts, session.WithVerifier(v))
	}
	s := session.NewSession(log, b, opts...)

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		log.Fatal("Failed to connect", zap.Error(err))
	}
	defer s.Disconnect()

	products, err := catalog.NewCatalog(b, time.Minute).GetProducts(ctx, []string{"gold.pack.small"}, billing.ItemTypeInAppPurchase)
	if err != nil {
		log.Fatal("Failed to fetch products", zap.Error(err))
	}
	for _, p := range products {
		log.Info("Product available", zap.String("product_id", p.ProductID), zap.String("price", p.LocalizedPrice))
	}

	purchase, err := s.Purchase(ctx, "gold.pack.small", billing.ItemTypeInAppPurchase, uuid.NewString())
	if err != nil {
		log.Fatal("Purchase failed", zap.Error(err))
	}
	log.Info("Purchase complete",
		zap.String("product_id", purchase.ProductID),
		zap.String("purchase_token", purchase.PurchaseToken),
	)

	if err := s.Consume(ctx, purchase.ProductID, purchase.PurchaseToken); err != nil {
		log.Fatal("Consume failed", zap.Error(err))
	}
	log.Info("Purchase consumed")
}
