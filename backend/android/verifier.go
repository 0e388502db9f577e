package android

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"

	"github.com/code-payments/billing-client/verify"
)

// Verifier checks purchases against the Google Play Developer API, using the
// purchase token embedded in the signed blob.
type Verifier struct {

	// The contents of a service account JSON file.
	serviceAccountJSON []byte

	// PackageName is the Android app's package name.
	packageName string
}

func NewVerifier(serviceAccountJSON []byte, pkgName string) verify.Verifier {
	return &Verifier{
		serviceAccountJSON: serviceAccountJSON,
		packageName:        pkgName,
	}
}

func (v *Verifier) VerifyPurchase(ctx context.Context, req *verify.Request) (bool, error) {
	token, err := tokenFromSignedData(req.SignedData)
	if err != nil {
		// A blob we cannot parse is a failed verification, not a
		// verifier fault.
		return false, nil
	}

	svc, err := androidpublisher.NewService(ctx, option.WithCredentialsJSON(v.serviceAccountJSON))
	if err != nil {
		return false, errors.Wrap(err, "failed to create android publisher client")
	}

	call := svc.Purchases.Products.Get(v.packageName, req.ProductID, token)

	productPurchase, err := call.Context(ctx).Do()
	if err != nil {
		// The API call failing (e.g. 404 purchase token not found)
		// means the purchase is not genuine.
		return false, nil
	}

	// PurchaseState 0 means purchased; anything else is canceled or
	// still pending.
	if productPurchase.PurchaseState != 0 {
		return false, nil
	}

	return true, nil
}

func tokenFromSignedData(signedData string) (string, error) {
	var blob struct {
		PurchaseToken string `json:"purchaseToken"`
	}
	if err := json.Unmarshal([]byte(signedData), &blob); err != nil {
		return "", errors.Wrap(err, "error decoding signed purchase blob")
	}
	if blob.PurchaseToken == "" {
		return "", errors.New("signed purchase blob has no purchase token")
	}
	return blob.PurchaseToken, nil
}
