package model

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// StoredSecret is the opening of a commitment, kept until the reveal is confirmed.
// Exactly one of the cleartext fields or Encrypted is populated.
type StoredSecret struct {
	Address   Address
	Move      Move
	Salt      Salt
	Encrypted *EncryptedSecret
	CreatedAt time.Time
	// ClosedAt is set once the game ended without a reveal. The opening is kept.
	ClosedAt time.Time
}

// Closed reports whether the game behind this opening has ended
func (s *StoredSecret) Closed() bool {
	return !s.ClosedAt.IsZero()
}

// IsEncrypted reports whether the opening is sealed under the vault master key
func (s *StoredSecret) IsEncrypted() bool {
	return s.Encrypted != nil
}

// EncryptedSecret is an AEAD-sealed (move, salt) pair
type EncryptedSecret struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyPath is the key-derivation path fixed at registration
type KeyPath string

const (
	KeyPathPRF KeyPath = "PRF"
	KeyPathPIN KeyPath = "PIN"
)

// Credential identifies the registered platform authenticator credential.
// PublicKey verifies the credential's signature over each ceremony challenge.
type Credential struct {
	ID         protocol.URLEncodedBase64 `json:"credential_id"`
	PublicKey  protocol.URLEncodedBase64 `json:"public_key"`
	UserHandle protocol.URLEncodedBase64 `json:"user_handle"`
	PRFSalt    protocol.URLEncodedBase64 `json:"prf_salt,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// WrappedMasterKey is the master key sealed under a PRF- or PIN-derived key
type WrappedMasterKey struct {
	KDFSalt    []byte `json:"kdf_salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}
