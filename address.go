package lotto

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const AddressLength = 20

// Address identifies a participant, the admin or the oracle relayer.
type Address [AddressLength]byte

// ZeroAddress is the null address reported as winner while no round is drawn.
var ZeroAddress = Address{}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ToAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// ToAddress parses a hex address with or without the 0x prefix.
func ToAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, errors.Wrapf(err, "invalid address %q", s)
	}
	if len(b) != AddressLength {
		return Address{}, errors.Errorf("invalid address length: expected %d, but got %d", AddressLength, len(b))
	}
	return BytesToAddress(b), nil
}

// BytesToAddress copies b into an Address, keeping the rightmost bytes
// when b is longer than an address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}
