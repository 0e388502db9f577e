package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/billing-client/backend/android"
	"github.com/code-payments/billing-client/backend/apple"
	"github.com/code-payments/billing-client/flags"
)

func TestConfiguredVerifier(t *testing.T) {
	require.Nil(t, configuredVerifier(&flags.Config{}))

	require.IsType(t, &apple.Verifier{}, configuredVerifier(&flags.Config{
		AppleBundleID: "com.example.app",
	}))

	// A partial Play configuration is not enough to verify against the
	// developer API.
	require.Nil(t, configuredVerifier(&flags.Config{
		AndroidPackageName: "com.example.app",
	}))

	require.IsType(t, &android.Verifier{}, configuredVerifier(&flags.Config{
		AndroidPackageName:        "com.example.app",
		AndroidServiceAccountJSON: `{"type":"service_account"}`,
		AppleBundleID:             "com.example.app",
	}))
}
