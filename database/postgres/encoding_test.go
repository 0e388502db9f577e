package pg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	// Receipt-shaped payloads: base64 PKCS#7 blobs, JSON, XML, empty.
	payloads := [][]byte{
		[]byte("MIIT0QYJKoZIhvcNAQcCoIITwjCCE74="),
		[]byte(`{"productId":"sku1","purchaseToken":"tok-1"}`),
		[]byte(`<Receipt Version="1.0"></Receipt>`),
		{},
	}

	for _, encType := range []EncodeType{Base64, Base58, Hex} {
		for _, payload := range payloads {
			encoded := Encode(payload, encType)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, string(payload), string(decoded))
		}
	}
}

func TestEncode_DefaultsToBase64(t *testing.T) {
	encoded := Encode([]byte("tok-1"))
	require.Equal(t, string(Base64)+":", encoded[:4])
}

func TestDecode_Malformed(t *testing.T) {
	for _, value := range []string{
		"no_prefix_at_all",
		"unknown:SGVsbG8=",
	} {
		_, err := Decode(value)
		require.Error(t, err)
	}
}
