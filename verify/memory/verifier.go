package memory

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	"github.com/code-payments/billing-client/verify"
)

// MemoryVerifier is an in-memory verifier that checks an ed25519 signature
// over the purchase's signed data. For testing purposes, any payload signed
// by the owner secret is considered valid.
type MemoryVerifier struct {
	publicKey ed25519.PublicKey
}

// NewMemoryVerifier creates a new MemoryVerifier from a given public key.
func NewMemoryVerifier(pubKey ed25519.PublicKey) verify.Verifier {
	return &MemoryVerifier{publicKey: pubKey}
}

func (m *MemoryVerifier) VerifyPurchase(ctx context.Context, req *verify.Request) (bool, error) {
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		// A malformed signature is a failed verification, not a
		// verifier fault.
		return false, nil
	}

	return ed25519.Verify(m.publicKey, []byte(req.SignedData), signature), nil
}

// GenerateKeyPair returns a fresh signing key pair for tests.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// SignPurchase produces the base64 signature a valid purchase would carry.
func SignPurchase(owner ed25519.PrivateKey, signedData string) string {
	signature := ed25519.Sign(owner, []byte(signedData))
	return base64.StdEncoding.EncodeToString(signature)
}
