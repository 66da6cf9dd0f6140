package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexBytes is a []byte which encodes as a 0x prefixed hexadecimal string in
// json, as opposed to the base64 default. Serialized proofs and verifying
// keys travel through the API as HexBytes.
type HexBytes []byte

// String returns the hexadecimal string representation of the HexBytes,
// prefixed with "0x".
func (b HexBytes) String() string {
	return hexutil.Encode(b)
}

// Equal reports whether b and other hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// MarshalJSON encodes the byte slice as a hexadecimal string prefixed with
// "0x".
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hexutil.Encode(b) + `"`), nil
}

// UnmarshalJSON expects a JSON string containing a hexadecimal
// representation, optionally prefixed with "0x".
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	decoded, err := HexStringToHexBytes(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// HexStringToHexBytes converts a hex string to a HexBytes. The 0x prefix is
// optional.
func HexStringToHexBytes(hexString string) (HexBytes, error) {
	if !strings.HasPrefix(hexString, "0x") && !strings.HasPrefix(hexString, "0X") {
		hexString = "0x" + hexString
	}
	if len(hexString) == 2 {
		return HexBytes{}, nil
	}
	// hexutil rejects odd length strings, which is what we want here
	b, err := hexutil.Decode("0x" + hexString[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", hexString, err)
	}
	return b, nil
}
