// Package vault protects the opening of a commitment at rest.
//
// A random master key seals each stored secret with AES-256-GCM. The master
// key is itself sealed by a wrapping key derived with PBKDF2 from either the
// authenticator's PRF output or a PIN bound to the credential id. Which of
// the two applies is fixed at registration and stored alongside the
// credential.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mcoot/rpslsgame/internal/dependencies/clock"
	"github.com/mcoot/rpslsgame/internal/dependencies/random"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/platform/authenticator"
	"github.com/mcoot/rpslsgame/internal/storage"
)

const (
	// RelyingPartyID names this application to the authenticator
	RelyingPartyID = "rpsls"
	prfSaltSize    = 32
)

// Config tunes the vault
type Config struct {
	// Iterations is the PBKDF2 work factor, at least DefaultIterations outside tests
	Iterations int
	// PinAttemptInterval is the minimum spacing between PIN unlock attempts
	PinAttemptInterval time.Duration
	// PinAttemptBurst is how many attempts may be made back to back
	PinAttemptBurst int
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		Iterations:         DefaultIterations,
		PinAttemptInterval: 2 * time.Second,
		PinAttemptBurst:    3,
	}
}

// Status describes the registered credential, if any
type Status struct {
	Registered   bool                      `json:"registered"`
	KeyPath      model.KeyPath             `json:"key_path,omitempty"`
	CredentialID protocol.URLEncodedBase64 `json:"credential_id,omitempty"`
	CreatedAt    time.Time                 `json:"created_at,omitzero"`
}

// Vault gates the master key behind the platform authenticator.
// Only one authentication runs at a time per Vault.
type Vault struct {
	records    *storage.Records
	auth       authenticator.Authenticator
	random     random.Random
	clock      clock.Clock
	logger     *slog.Logger
	iterations int
	pinLimiter *rate.Limiter

	inFlight sync.Mutex
}

// New creates a Vault over the given records
func New(
	records *storage.Records,
	auth authenticator.Authenticator,
	random random.Random,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Vault {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.PinAttemptBurst <= 0 {
		cfg.PinAttemptBurst = 1
	}
	limit := rate.Inf
	if cfg.PinAttemptInterval > 0 {
		limit = rate.Every(cfg.PinAttemptInterval)
	}
	return &Vault{
		records:    records,
		auth:       auth,
		random:     random,
		clock:      clock,
		logger:     logger,
		iterations: cfg.Iterations,
		pinLimiter: rate.NewLimiter(limit, cfg.PinAttemptBurst),
	}
}

// begin claims the single authentication slot
func (v *Vault) begin() (func(), error) {
	if !v.inFlight.TryLock() {
		return nil, model.ErrAuthenticationInProgress
	}
	return v.inFlight.Unlock, nil
}

// Registered reports whether a credential and wrapped key are stored
func (v *Vault) Registered(ctx context.Context) (bool, error) {
	st, err := v.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Registered, nil
}

// Status reports the registration state without prompting
func (v *Vault) Status(ctx context.Context) (*Status, error) {
	cred, _, path, err := v.load(ctx)
	if errors.Is(err, model.ErrNotRegistered) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{
		Registered:   true,
		KeyPath:      path,
		CredentialID: cred.ID,
		CreatedAt:    cred.CreatedAt,
	}, nil
}

// Register creates a credential and a fresh master key. The PIN is used only
// when the authenticator returns no PRF output, and is then required.
func (v *Vault) Register(ctx context.Context, pin string) (*model.Credential, error) {
	done, err := v.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	if _, ok, err := v.records.GetCredential(ctx); err != nil {
		return nil, err
	} else if ok {
		return nil, model.ErrAlreadyRegistered
	}
	if pin != "" && len(pin) < MinPinLength {
		return nil, model.ErrPinTooShort
	}
	if !v.auth.Available(ctx) {
		return nil, model.ErrAuthenticatorUnavailable
	}

	userHandle := uuid.New()
	prfSalt, err := v.random.Bytes(prfSaltSize)
	if err != nil {
		return nil, err
	}
	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, err
	}

	v.logger.Debug("requesting credential", "prf_hint", v.auth.Hint())
	att, err := v.auth.Create(ctx, authenticator.CreateRequest{
		RPID:       RelyingPartyID,
		Challenge:  protocol.URLEncodedBase64(challenge),
		UserHandle: userHandle[:],
		PRFSalt:    prfSalt,
	})
	if err != nil {
		return nil, authError(err)
	}
	if !authenticator.VerifySignature(att.PublicKey, RelyingPartyID, challenge, att.Signature) {
		return nil, fmt.Errorf("%w: credential did not sign the challenge", model.ErrAuthenticationFailed)
	}

	var (
		path     model.KeyPath
		material []byte
	)
	switch r := att.Result.(type) {
	case authenticator.PRFOutput:
		if len(r) == 0 {
			return nil, model.ErrAuthenticationFailed
		}
		path = model.KeyPathPRF
		material = prfMaterial(r)
	case authenticator.PresenceOnly:
		if pin == "" {
			return nil, model.ErrPinRequired
		}
		path = model.KeyPathPIN
		material = pinMaterial(pin, att.CredentialID)
	default:
		return nil, fmt.Errorf("%w: unexpected authenticator result %T", model.ErrAuthenticationFailed, att.Result)
	}
	defer zero(material)

	raw, err := v.random.Bytes(MasterKeySize)
	if err != nil {
		return nil, err
	}
	key := newMasterKey(raw)
	defer key.Destroy()

	wrapped, err := v.wrap(material, key)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		ID:         att.CredentialID,
		PublicKey:  []byte(att.PublicKey),
		UserHandle: userHandle[:],
		CreatedAt:  v.clock.Now(),
	}
	if path == model.KeyPathPRF {
		cred.PRFSalt = prfSalt
	}

	if err := v.persist(ctx, cred, wrapped, path); err != nil {
		return nil, err
	}
	v.logger.Info("vault registered", "key_path", path)
	return cred, nil
}

// persist writes the credential last so a partial write never looks registered
func (v *Vault) persist(ctx context.Context, cred *model.Credential, wrapped *model.WrappedMasterKey, path model.KeyPath) error {
	if err := v.records.SaveWrappedKey(ctx, wrapped); err != nil {
		return err
	}
	if err := v.records.SaveKeyPath(ctx, path); err != nil {
		_ = v.records.DeleteVault(ctx)
		return err
	}
	if err := v.records.SaveCredential(ctx, cred); err != nil {
		_ = v.records.DeleteVault(ctx)
		return err
	}
	return nil
}

// DeriveKey authenticates and unwraps the master key along the path recorded
// at registration. A wrong PIN and a tampered wrapped key both yield
// ErrDecryptionFailed. The caller must Destroy the returned key.
func (v *Vault) DeriveKey(ctx context.Context, pin string) (*MasterKey, error) {
	done, err := v.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	cred, wrapped, path, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	if path == model.KeyPathPIN {
		if pin == "" {
			return nil, model.ErrPinRequired
		}
		if len(pin) < MinPinLength {
			return nil, model.ErrPinTooShort
		}
		if err := v.pinLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrAuthenticationFailed, err)
		}
	}
	if !v.auth.Available(ctx) {
		return nil, model.ErrAuthenticatorUnavailable
	}

	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, err
	}
	assertion, err := v.auth.Get(ctx, authenticator.AssertionRequest{
		RPID:         RelyingPartyID,
		Challenge:    protocol.URLEncodedBase64(challenge),
		CredentialID: cred.ID,
		PRFSalt:      cred.PRFSalt,
	})
	if err != nil {
		return nil, authError(err)
	}
	if !authenticator.VerifySignature(cred.PublicKey, RelyingPartyID, challenge, assertion.Signature) {
		return nil, fmt.Errorf("%w: assertion did not sign the challenge", model.ErrAuthenticationFailed)
	}
	result := assertion.Result

	var material []byte
	switch path {
	case model.KeyPathPRF:
		out, ok := result.(authenticator.PRFOutput)
		if !ok || len(out) == 0 {
			return nil, fmt.Errorf("%w: authenticator returned no PRF output", model.ErrAuthenticationFailed)
		}
		material = prfMaterial(out)
	default:
		material = pinMaterial(pin, cred.ID)
	}
	defer zero(material)

	key, err := v.unwrap(material, wrapped)
	if err != nil {
		v.logger.Warn("master key unwrap failed", "key_path", path)
		return nil, err
	}
	return key, nil
}

// Revoke deletes the credential and wrapped key. Secrets sealed under the
// old master key become unrecoverable.
func (v *Vault) Revoke(ctx context.Context) error {
	done, err := v.begin()
	if err != nil {
		return err
	}
	defer done()

	if err := v.records.DeleteVault(ctx); err != nil {
		return err
	}
	v.logger.Info("vault revoked")
	return nil
}

// EncryptSecret seals (move, salt) under key with a fresh nonce
func (v *Vault) EncryptSecret(key *MasterKey, move model.Move, salt model.Salt) (*model.EncryptedSecret, error) {
	if !move.Valid() {
		return nil, model.ErrInvalidMove
	}
	k := key.bytes()
	if k == nil {
		return nil, errors.New("vault: master key destroyed")
	}
	nonce, err := v.random.Bytes(nonceSize)
	if err != nil {
		return nil, err
	}
	plaintext := encodeSecret(move, salt)
	defer zero(plaintext)

	ciphertext, err := seal(k, nonce, plaintext)
	if err != nil {
		return nil, err
	}
	return &model.EncryptedSecret{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// DecryptSecret opens a sealed secret. It never returns partial data.
func (v *Vault) DecryptSecret(key *MasterKey, enc *model.EncryptedSecret) (model.Move, model.Salt, error) {
	k := key.bytes()
	if k == nil || enc == nil {
		return model.MoveNone, model.Salt{}, model.ErrDecryptionFailed
	}
	plaintext, err := open(k, enc.Nonce, enc.Ciphertext)
	if err != nil {
		return model.MoveNone, model.Salt{}, err
	}
	defer zero(plaintext)
	return decodeSecret(plaintext)
}

func (v *Vault) wrap(material []byte, key *MasterKey) (*model.WrappedMasterKey, error) {
	kdfSalt, err := v.random.Bytes(kdfSaltSize)
	if err != nil {
		return nil, err
	}
	nonce, err := v.random.Bytes(nonceSize)
	if err != nil {
		return nil, err
	}
	wrappingKey := deriveWrappingKey(material, kdfSalt, v.iterations)
	defer zero(wrappingKey)

	ciphertext, err := seal(wrappingKey, nonce, key.bytes())
	if err != nil {
		return nil, err
	}
	return &model.WrappedMasterKey{KDFSalt: kdfSalt, Nonce: nonce, Ciphertext: ciphertext}, nil
}

func (v *Vault) unwrap(material []byte, wrapped *model.WrappedMasterKey) (*MasterKey, error) {
	wrappingKey := deriveWrappingKey(material, wrapped.KDFSalt, v.iterations)
	defer zero(wrappingKey)

	raw, err := open(wrappingKey, wrapped.Nonce, wrapped.Ciphertext)
	if err != nil {
		return nil, err
	}
	if len(raw) != MasterKeySize {
		zero(raw)
		return nil, model.ErrDecryptionFailed
	}
	return newMasterKey(raw), nil
}

// load reads all three registration records. Any missing record means the
// vault is not registered.
func (v *Vault) load(ctx context.Context) (*model.Credential, *model.WrappedMasterKey, model.KeyPath, error) {
	cred, ok, err := v.records.GetCredential(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if !ok {
		return nil, nil, "", model.ErrNotRegistered
	}
	wrapped, ok, err := v.records.GetWrappedKey(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if !ok {
		return nil, nil, "", model.ErrNotRegistered
	}
	path, ok, err := v.records.GetKeyPath(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if !ok {
		return nil, nil, "", model.ErrNotRegistered
	}
	return cred, wrapped, path, nil
}

// authError keeps vault errors and reports anything else as a failed ceremony
func authError(err error) error {
	if errors.Is(err, model.ErrVault) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrAuthenticationFailed, err)
}
