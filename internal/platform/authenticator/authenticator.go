// Package authenticator models the platform authenticator the vault gates on.
//
// A real device would back this with WebAuthn and the prf extension; the
// Software authenticator emulates one for command-line use.
package authenticator

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/go-webauthn/webauthn/protocol"
)

// Result is what one authenticator ceremony yields: either PRF output bound
// to the credential's PRF salt, or proof of presence alone.
type Result interface {
	isResult()
}

// PRFOutput is the deterministic secret produced by the prf extension
type PRFOutput []byte

// PresenceOnly means user verification succeeded but no PRF output was returned
type PresenceOnly struct{}

func (PRFOutput) isResult()    {}
func (PresenceOnly) isResult() {}

// CreateRequest asks for a new credential
type CreateRequest struct {
	RPID       string
	Challenge  protocol.URLEncodedBase64
	UserHandle []byte
	PRFSalt    []byte
}

// Attestation is a newly created credential and the result of its ceremony.
// Signature is made with the new credential's key over SignedData.
type Attestation struct {
	CredentialID []byte
	PublicKey    ed25519.PublicKey
	Signature    []byte
	Result       Result
}

// Assertion is the result of authenticating with an existing credential.
// Signature is made with the credential's key over SignedData.
type Assertion struct {
	Signature []byte
	Result    Result
}

// AssertionRequest asks an existing credential to authenticate
type AssertionRequest struct {
	RPID         string
	Challenge    protocol.URLEncodedBase64
	CredentialID []byte
	PRFSalt      []byte
}

// Authenticator is the platform authenticator capability. Cancelled or
// rejected ceremonies return model.ErrAuthenticationFailed; a device without
// an authenticator returns model.ErrAuthenticatorUnavailable.
type Authenticator interface {
	Available(ctx context.Context) bool
	Create(ctx context.Context, req CreateRequest) (*Attestation, error)
	Get(ctx context.Context, req AssertionRequest) (*Assertion, error)
	// Hint guesses PRF support before registration. It is advisory only.
	Hint() bool
}

// SignedData is what a ceremony signs: the SHA-256 of the relying party id
// followed by the challenge, as in WebAuthn authenticator data.
func SignedData(rpID string, challenge []byte) []byte {
	rpIDHash := sha256.Sum256([]byte(rpID))
	return append(rpIDHash[:], challenge...)
}

// VerifySignature checks a ceremony signature against the credential's public key
func VerifySignature(publicKey []byte, rpID string, challenge, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(challenge) == 0 {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), SignedData(rpID, challenge), signature)
}
