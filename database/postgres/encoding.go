// Package pg holds shared postgres column helpers.
package pg

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

// EncodeType selects a self-describing text encoding for byte columns. The
// short name is stored as a prefix so values remain decodable if the default
// ever changes.
type EncodeType string

const (
	Base64            EncodeType = "b64"
	Base58            EncodeType = "b58"
	Hex               EncodeType = "hex"
	DefaultEncodeType            = Base64
)

// Encode renders value as prefixed text, defaulting to base64. Used for
// receipt and signature columns, which hold arbitrary platform blobs.
func Encode(value []byte, encodeType ...EncodeType) string {
	encType := DefaultEncodeType
	if len(encodeType) > 0 {
		encType = encodeType[0]
	}

	var encoded string
	switch encType {
	case Base58:
		encoded = base58.Encode(value)
	case Hex:
		encoded = hex.EncodeToString(value)
	default:
		encoded = base64.StdEncoding.EncodeToString(value)
	}

	return string(encType) + ":" + encoded
}

// Decode reverses Encode, selecting the decoder from the stored prefix.
func Decode(value string) ([]byte, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid encoded value format")
	}

	switch EncodeType(parts[0]) {
	case Base58:
		return base58.Decode(parts[1])
	case Hex:
		return hex.DecodeString(parts[1])
	case Base64:
		return base64.StdEncoding.DecodeString(parts[1])
	default:
		return nil, errors.New("unsupported encoding type")
	}
}
