package mocks

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/platform/authenticator"
)

// MockAuthenticator is a scriptable platform authenticator
type MockAuthenticator struct {
	mu sync.Mutex

	// Unavailable emulates a device without an authenticator
	Unavailable bool
	// PRF, when set, is returned as PRF output; otherwise ceremonies are presence only
	PRF []byte
	// Err, when set, is returned by every ceremony
	Err error
	// BadSignature makes ceremonies sign something other than the challenge
	BadSignature bool
	// Gate, when set, blocks each ceremony until it receives a value
	Gate    chan struct{}
	Started chan struct{}

	CreateCalls int
	GetCalls    int
	LastRequest authenticator.AssertionRequest
}

// mockCredentialKey signs every mock ceremony
var mockCredentialKey = ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x42}, ed25519.SeedSize))

// Ensure MockAuthenticator implements Authenticator
var _ authenticator.Authenticator = (*MockAuthenticator)(nil)

// NewMockAuthenticator creates a presence-only authenticator
func NewMockAuthenticator() *MockAuthenticator {
	return &MockAuthenticator{}
}

func (a *MockAuthenticator) Available(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.Unavailable
}

func (a *MockAuthenticator) Hint() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.PRF != nil
}

func (a *MockAuthenticator) Create(ctx context.Context, req authenticator.CreateRequest) (*authenticator.Attestation, error) {
	a.mu.Lock()
	a.CreateCalls++
	a.mu.Unlock()

	result, err := a.ceremony(ctx)
	if err != nil {
		return nil, err
	}
	return &authenticator.Attestation{
		CredentialID: []byte("mock-credential"),
		PublicKey:    mockCredentialKey.Public().(ed25519.PublicKey),
		Signature:    a.sign(req.RPID, req.Challenge),
		Result:       result,
	}, nil
}

func (a *MockAuthenticator) Get(ctx context.Context, req authenticator.AssertionRequest) (*authenticator.Assertion, error) {
	a.mu.Lock()
	a.GetCalls++
	a.LastRequest = req
	a.mu.Unlock()

	result, err := a.ceremony(ctx)
	if err != nil {
		return nil, err
	}
	return &authenticator.Assertion{Signature: a.sign(req.RPID, req.Challenge), Result: result}, nil
}

func (a *MockAuthenticator) sign(rpID string, challenge []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.BadSignature {
		challenge = append([]byte("not-"), challenge...)
	}
	return ed25519.Sign(mockCredentialKey, authenticator.SignedData(rpID, challenge))
}

func (a *MockAuthenticator) ceremony(ctx context.Context) (authenticator.Result, error) {
	if a.Started != nil {
		a.Started <- struct{}{}
	}
	if a.Gate != nil {
		select {
		case <-a.Gate:
		case <-ctx.Done():
			return nil, model.ErrAuthenticationFailed
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Unavailable {
		return nil, model.ErrAuthenticatorUnavailable
	}
	if a.Err != nil {
		return nil, a.Err
	}
	if a.PRF != nil {
		return authenticator.PRFOutput(append([]byte(nil), a.PRF...)), nil
	}
	return authenticator.PresenceOnly{}, nil
}
