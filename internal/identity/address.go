package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AddressLen is the byte length of an account address.
const AddressLen = 20

// Address identifies an account on the settlement ledger. It is the
// lowercase hex encoding of the first 20 bytes of the SHA-256 digest of a
// compressed secp256k1 public key.
type Address string

// ErrInvalidAddress is returned when an address string cannot be parsed.
var ErrInvalidAddress = errors.New("identity: invalid address")

// FromPublicKey derives the address of a public key.
func FromPublicKey(pub *secp256k1.PublicKey) Address {
	if pub == nil {
		return ""
	}
	sum := sha256.Sum256(pub.SerializeCompressed())
	return Address(hex.EncodeToString(sum[:AddressLen]))
}

// Parse validates an address string.
func Parse(value string) (Address, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if len(value) != AddressLen*2 {
		return "", ErrInvalidAddress
	}
	if _, err := hex.DecodeString(value); err != nil {
		return "", ErrInvalidAddress
	}
	return Address(value), nil
}

// String returns the hex form.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }
