package random

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Random supplies the entropy for salts, keys and nonces. Implementations
// must be safe for cryptographic use outside of tests.
type Random interface {
	io.Reader

	// Bytes returns n fresh random bytes
	Bytes(n int) ([]byte, error)
}

// CryptoRandom reads from crypto/rand
type CryptoRandom struct{}

// New creates a CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Read fills p from the operating system CSPRNG
func (r *CryptoRandom) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// Bytes returns n bytes from the operating system CSPRNG
func (r *CryptoRandom) Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("random: invalid length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	return b, nil
}
