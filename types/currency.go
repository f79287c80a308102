package types

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Currency identifies a fungible resource by its 20-byte token address.
// The zero address is reserved for the native asset.
type Currency common.Address

// Native is the sentinel currency for the chain's native asset.
var Native Currency

// HexToCurrency converts a hex address, failing on malformed input.
func HexToCurrency(s string) (Currency, error) {
	if !common.IsHexAddress(s) {
		return Native, fmt.Errorf("types: invalid currency address %q", s)
	}
	return Currency(common.HexToAddress(s)), nil
}

// MustCurrency is like HexToCurrency but panics on error.
func MustCurrency(s string) Currency {
	c, err := HexToCurrency(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Address returns the underlying address.
func (c Currency) Address() common.Address { return common.Address(c) }

// IsNative reports whether c is the native sentinel.
func (c Currency) IsNative() bool { return c == Native }

// Less orders currencies by their address bytes.
func (c Currency) Less(o Currency) bool { return bytes.Compare(c[:], o[:]) < 0 }

// String returns the checksummed hex address.
func (c Currency) String() string { return common.Address(c).Hex() }

// MarshalText implements encoding.TextMarshaler.
func (c Currency) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Currency) UnmarshalText(data []byte) error {
	parsed, err := HexToCurrency(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Participant identifies the principal whose balances are tracked.
type Participant common.Address

// HexToParticipant converts a hex address, failing on malformed input.
func HexToParticipant(s string) (Participant, error) {
	if !common.IsHexAddress(s) {
		return Participant{}, fmt.Errorf("types: invalid participant address %q", s)
	}
	return Participant(common.HexToAddress(s)), nil
}

// MustParticipant is like HexToParticipant but panics on error.
func MustParticipant(s string) Participant {
	p, err := HexToParticipant(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Address returns the underlying address.
func (p Participant) Address() common.Address { return common.Address(p) }

// String returns the checksummed hex address.
func (p Participant) String() string { return common.Address(p).Hex() }

// MarshalText implements encoding.TextMarshaler.
func (p Participant) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Participant) UnmarshalText(data []byte) error {
	parsed, err := HexToParticipant(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Key addresses one ledger entry.
type Key struct {
	Participant Participant `json:"participant" yaml:"participant"`
	Currency    Currency    `json:"currency"    yaml:"currency"`
}

func (k Key) String() string {
	return k.Participant.String() + "/" + k.Currency.String()
}
