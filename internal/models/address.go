package models

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// AddressLen is the byte length of every account address on the ledger.
const AddressLen = 32

// Address identifies an account on the ledger. The zero value is reserved:
// it marks "no account" (for example an unassigned task) and is never a
// valid transfer endpoint.
type Address [AddressLen]byte

// ZeroAddress is the unset-account sentinel.
var ZeroAddress Address

// ParseAddress decodes a 64-character hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return a, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, AddressLen, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// NewWalletAddress returns a random address for a user wallet account.
func NewWalletAddress() (Address, error) {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		return a, err
	}
	return a, nil
}

// IsZero reports whether the address is the unset sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalJSON encodes the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a hex string into the address.
func (a *Address) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("address must be a JSON string")
	}
	parsed, err := ParseAddress(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
