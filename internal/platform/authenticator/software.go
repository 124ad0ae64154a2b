package authenticator

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/mcoot/rpslsgame/internal/dependencies/random"
	"github.com/mcoot/rpslsgame/internal/model"
)

// Mode selects what the software authenticator emulates
type Mode string

const (
	// ModePRF returns PRF output on every ceremony
	ModePRF Mode = "prf"
	// ModePresence verifies presence but never returns PRF output
	ModePresence Mode = "presence"
	// ModeNone emulates a device without a platform authenticator
	ModeNone Mode = "none"
)

const (
	deviceSecretSize = 32
	credentialIDSize = 32
	prfOutputSize    = 32
)

// ConfirmFunc asks the user to approve a ceremony. Returning false cancels it.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Software is a file-backed authenticator. Its PRF is HKDF-SHA256 keyed by a
// device secret, with the PRF salt as HKDF salt and the credential id as info,
// which gives the same per-credential determinism as hmac-secret. Each
// credential's ed25519 signing key is derived from the same secret.
type Software struct {
	mode    Mode
	path    string
	random  random.Random
	confirm ConfirmFunc

	mu     sync.Mutex
	secret []byte
}

// NewSoftware creates a software authenticator whose device secret lives at path.
// confirm may be nil, in which case every ceremony is approved.
func NewSoftware(mode Mode, path string, rng random.Random, confirm ConfirmFunc) (*Software, error) {
	switch mode {
	case ModePRF, ModePresence, ModeNone:
	default:
		return nil, fmt.Errorf("unknown authenticator mode %q", mode)
	}
	return &Software{
		mode:    mode,
		path:    path,
		random:  rng,
		confirm: confirm,
	}, nil
}

// Ensure Software implements the interface
var _ Authenticator = (*Software)(nil)

func (s *Software) Available(ctx context.Context) bool {
	return s.mode != ModeNone
}

func (s *Software) Hint() bool {
	return s.mode == ModePRF
}

func (s *Software) Create(ctx context.Context, req CreateRequest) (*Attestation, error) {
	if !s.Available(ctx) {
		return nil, model.ErrAuthenticatorUnavailable
	}
	if len(req.Challenge) == 0 {
		return nil, model.ErrAuthenticationFailed
	}
	if !s.approve(ctx, "Create a credential for "+req.RPID) {
		return nil, model.ErrAuthenticationFailed
	}

	credentialID, err := s.random.Bytes(credentialIDSize)
	if err != nil {
		return nil, fmt.Errorf("generate credential id: %w", err)
	}
	key, err := s.signingKey(credentialID)
	if err != nil {
		return nil, err
	}
	result, err := s.evaluate(credentialID, req.PRFSalt)
	if err != nil {
		return nil, err
	}
	return &Attestation{
		CredentialID: credentialID,
		PublicKey:    key.Public().(ed25519.PublicKey),
		Signature:    ed25519.Sign(key, SignedData(req.RPID, req.Challenge)),
		Result:       result,
	}, nil
}

func (s *Software) Get(ctx context.Context, req AssertionRequest) (*Assertion, error) {
	if !s.Available(ctx) {
		return nil, model.ErrAuthenticatorUnavailable
	}
	if len(req.CredentialID) == 0 || len(req.Challenge) == 0 {
		return nil, model.ErrAuthenticationFailed
	}
	if !s.approve(ctx, "Unlock the vault for "+req.RPID) {
		return nil, model.ErrAuthenticationFailed
	}
	key, err := s.signingKey(req.CredentialID)
	if err != nil {
		return nil, err
	}
	result, err := s.evaluate(req.CredentialID, req.PRFSalt)
	if err != nil {
		return nil, err
	}
	return &Assertion{
		Signature: ed25519.Sign(key, SignedData(req.RPID, req.Challenge)),
		Result:    result,
	}, nil
}

// signingKey derives the credential's ed25519 key from the device secret
func (s *Software) signingKey(credentialID []byte) (ed25519.PrivateKey, error) {
	secret, err := s.deviceSecret()
	if err != nil {
		return nil, err
	}
	seed := make([]byte, ed25519.SeedSize)
	info := append([]byte("credential-key:"), credentialID...)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info), seed); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (s *Software) approve(ctx context.Context, prompt string) bool {
	if ctx.Err() != nil {
		return false
	}
	if s.confirm == nil {
		return true
	}
	return s.confirm(ctx, prompt)
}

func (s *Software) evaluate(credentialID, prfSalt []byte) (Result, error) {
	if s.mode != ModePRF || len(prfSalt) == 0 {
		return PresenceOnly{}, nil
	}
	secret, err := s.deviceSecret()
	if err != nil {
		return nil, err
	}
	out := make([]byte, prfOutputSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, prfSalt, credentialID), out); err != nil {
		return nil, fmt.Errorf("evaluate prf: %w", err)
	}
	return PRFOutput(out), nil
}

// deviceSecret loads the device secret, creating it with mode 0600 on first use
func (s *Software) deviceSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret != nil {
		return s.secret, nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if len(data) != deviceSecretSize {
			return nil, fmt.Errorf("device secret %s: unexpected length %d", s.path, len(data))
		}
	case errors.Is(err, fs.ErrNotExist):
		data, err = s.random.Bytes(deviceSecretSize)
		if err != nil {
			return nil, fmt.Errorf("generate device secret: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return nil, fmt.Errorf("create device secret dir: %w", err)
		}
		f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create device secret: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write device secret: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("write device secret: %w", err)
		}
	default:
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	s.secret = data
	return data, nil
}
