package verify

import "context"

// Request carries the raw material a verifier needs to validate a purchase.
// SignedData and Signature come straight from the backend; not every backend
// populates both.
type Request struct {
	ProductID     string
	TransactionID string
	SignedData    string
	Signature     string
}

type Verifier interface {

	// VerifyPurchase determines whether a purchase is genuine. A false
	// result is a verification failure, not an error; errors are reserved
	// for the verifier itself being unable to decide.
	VerifyPurchase(ctx context.Context, req *Request) (bool, error)
}
