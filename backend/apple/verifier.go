package apple

import (
	"context"

	"github.com/devsisters/go-applereceipt"
	"github.com/devsisters/go-applereceipt/applepki"

	"github.com/code-payments/billing-client/verify"
)

// Verifier validates the PKCS#7 app receipt attached to a purchase against
// Apple's certificate chain and the expected bundle.
type Verifier struct {
	// PackageName is the app's bundle identifier, e.g. "com.example.app".
	packageName string
}

func NewVerifier(pkgName string) verify.Verifier {
	return &Verifier{
		packageName: pkgName,
	}
}

func (v *Verifier) VerifyPurchase(ctx context.Context, req *verify.Request) (bool, error) {
	receipt, err := applereceipt.DecodeBase64(req.SignedData, applepki.CertPool())
	if err != nil {
		// A receipt that fails signature checks or does not decode is a
		// failed verification, not a verifier fault.
		return false, nil
	}

	// Verify the bundle ID.
	if receipt.BundleIdentifier != v.packageName {
		return false, nil
	}

	// Verify the receipt actually covers the purchased product.
	for _, iap := range receipt.InAppPurchaseReceipts {
		if iap.ProductIdentifier == req.ProductID {
			return true, nil
		}
	}

	return false, nil
}
