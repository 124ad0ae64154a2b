package model

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// SaltSize is the width of a commitment salt in bytes
const SaltSize = 32

// Salt is a single-use 256-bit blinding value, big-endian
type Salt [SaltSize]byte

// CommitmentSize is the width of a commitment digest in bytes
const CommitmentSize = 32

// Commitment is a digest binding one (move, salt) pair
type Commitment [CommitmentSize]byte

// NewSalt reads a fresh salt from r
func NewSalt(r io.Reader) (Salt, error) {
	var s Salt
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return Salt{}, fmt.Errorf("generate salt: %w", err)
	}
	return s, nil
}

// ParseSalt accepts a 0x-prefixed hex string or a decimal uint256
func ParseSalt(s string) (Salt, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Salt{}, ErrInvalidSalt
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw := s[2:]
		if len(raw) == 0 || len(raw) > SaltSize*2 {
			return Salt{}, ErrInvalidSalt
		}
		if len(raw)%2 == 1 {
			raw = "0" + raw
		}
		b, err := hex.DecodeString(raw)
		if err != nil {
			return Salt{}, ErrInvalidSalt
		}
		var out Salt
		copy(out[SaltSize-len(b):], b)
		return out, nil
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > SaltSize*8 {
		return Salt{}, ErrInvalidSalt
	}
	return SaltFromBig(n), nil
}

// SaltFromBig converts a non-negative integer below 2^256 into a Salt
func SaltFromBig(n *big.Int) Salt {
	var out Salt
	n.FillBytes(out[:])
	return out
}

// BigInt returns the salt as the uint256 the ledger expects
func (s Salt) BigInt() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// String renders the salt in decimal
func (s Salt) String() string {
	return s.BigInt().String()
}

// Hex renders the salt as 0x-prefixed hex
func (s Salt) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Hex renders the commitment as 0x-prefixed hex
func (c Commitment) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

func (c Commitment) String() string {
	return c.Hex()
}
