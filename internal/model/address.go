package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a ledger account or game contract address, stored lowercase
type Address string

// ParseAddress validates a 0x-prefixed 20-byte hex address
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", ErrInvalidAddress
	}
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return AddressFromCommon(common.HexToAddress(s)), nil
}

// AddressFromCommon converts a go-ethereum address
func AddressFromCommon(a common.Address) Address {
	return Address(strings.ToLower(a.Hex()))
}

// Common converts back to a go-ethereum address
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Checksum renders the EIP-55 mixed-case form
func (a Address) Checksum() string {
	return a.Common().Hex()
}

// IsZero reports whether a is empty or the zero address
func (a Address) IsZero() bool {
	return a == "" || a.Common() == (common.Address{})
}

func (a Address) String() string {
	return string(a)
}
