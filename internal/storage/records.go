package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcoot/rpslsgame/internal/model"
)

// Records reads and writes the typed records kept in a Store.
// Lookups of absent records return ok == false rather than an error.
type Records struct {
	store Store
}

// NewRecords wraps a Store
func NewRecords(store Store) *Records {
	return &Records{store: store}
}

// Store returns the underlying Store
func (r *Records) Store() Store {
	return r.store
}

// secretRecord is the persisted form of a StoredSecret
type secretRecord struct {
	Move        model.Move             `json:"move,omitempty"`
	Salt        string                 `json:"salt,omitempty"`
	IsEncrypted bool                   `json:"is_encrypted"`
	Encrypted   *model.EncryptedSecret `json:"encrypted,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ClosedAt    time.Time              `json:"closed_at,omitzero"`
}

// SaveSecret stores the opening for a game, replacing any previous one
func (r *Records) SaveSecret(ctx context.Context, s *model.StoredSecret) error {
	rec := secretRecord{CreatedAt: s.CreatedAt, ClosedAt: s.ClosedAt}
	if s.IsEncrypted() {
		rec.IsEncrypted = true
		rec.Encrypted = s.Encrypted
	} else {
		if !s.Move.Valid() {
			return model.ErrInvalidMove
		}
		rec.Move = s.Move
		rec.Salt = s.Salt.Hex()
	}
	return r.put(ctx, SecretKey(s.Address), rec)
}

// GetSecret loads the opening for a game
func (r *Records) GetSecret(ctx context.Context, addr model.Address) (*model.StoredSecret, bool, error) {
	var rec secretRecord
	ok, err := r.get(ctx, SecretKey(addr), &rec)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.toModel(addr)
}

func (rec secretRecord) toModel(addr model.Address) (*model.StoredSecret, bool, error) {
	s := &model.StoredSecret{
		Address:   model.Address(strings.ToLower(string(addr))),
		CreatedAt: rec.CreatedAt,
		ClosedAt:  rec.ClosedAt,
	}
	if rec.IsEncrypted {
		if rec.Encrypted == nil {
			return nil, false, fmt.Errorf("secret record %s: encrypted flag without ciphertext", addr)
		}
		s.Encrypted = rec.Encrypted
		return s, true, nil
	}
	salt, err := model.ParseSalt(rec.Salt)
	if err != nil {
		return nil, false, fmt.Errorf("secret record %s: %w", addr, err)
	}
	if !rec.Move.Valid() {
		return nil, false, fmt.Errorf("secret record %s: %w", addr, model.ErrInvalidMove)
	}
	s.Move = rec.Move
	s.Salt = salt
	return s, true, nil
}

// CloseSecret marks the opening for a game as belonging to an ended game.
// It reports false when no opening is stored.
func (r *Records) CloseSecret(ctx context.Context, addr model.Address, at time.Time) (bool, error) {
	s, ok, err := r.GetSecret(ctx, addr)
	if err != nil || !ok {
		return false, err
	}
	s.ClosedAt = at.UTC()
	return true, r.SaveSecret(ctx, s)
}

// DeleteSecret removes the opening for a game
func (r *Records) DeleteSecret(ctx context.Context, addr model.Address) error {
	return r.store.Delete(ctx, SecretKey(addr))
}

// ListSecrets returns every stored opening, ordered by address
func (r *Records) ListSecrets(ctx context.Context) ([]*model.StoredSecret, error) {
	keys, err := r.store.Keys(ctx, SecretPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*model.StoredSecret, 0, len(keys))
	for _, key := range keys {
		addr := model.Address(strings.TrimPrefix(key, SecretPrefix))
		s, ok, err := r.GetSecret(ctx, addr)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// SaveResult caches the outcome of a reveal
func (r *Records) SaveResult(ctx context.Context, addr model.Address, result *model.GameResult) error {
	return r.put(ctx, ResultKey(addr), result)
}

// GetResult loads a cached outcome
func (r *Records) GetResult(ctx context.Context, addr model.Address) (*model.GameResult, bool, error) {
	var result model.GameResult
	ok, err := r.get(ctx, ResultKey(addr), &result)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &result, true, nil
}

// SaveCredential stores the device credential
func (r *Records) SaveCredential(ctx context.Context, c *model.Credential) error {
	return r.put(ctx, CredentialKey, c)
}

// GetCredential loads the device credential
func (r *Records) GetCredential(ctx context.Context) (*model.Credential, bool, error) {
	var c model.Credential
	ok, err := r.get(ctx, CredentialKey, &c)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &c, true, nil
}

// SaveWrappedKey stores the wrapped master key
func (r *Records) SaveWrappedKey(ctx context.Context, w *model.WrappedMasterKey) error {
	return r.put(ctx, WrappedKeyKey, w)
}

// GetWrappedKey loads the wrapped master key
func (r *Records) GetWrappedKey(ctx context.Context) (*model.WrappedMasterKey, bool, error) {
	var w model.WrappedMasterKey
	ok, err := r.get(ctx, WrappedKeyKey, &w)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &w, true, nil
}

// SaveKeyPath records which derivation path the credential uses
func (r *Records) SaveKeyPath(ctx context.Context, p model.KeyPath) error {
	return r.store.Set(ctx, KeyPathKey, []byte(p))
}

// GetKeyPath loads the recorded derivation path
func (r *Records) GetKeyPath(ctx context.Context) (model.KeyPath, bool, error) {
	data, err := r.store.Get(ctx, KeyPathKey)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	p := model.KeyPath(data)
	if p != model.KeyPathPRF && p != model.KeyPathPIN {
		return "", false, fmt.Errorf("key path record: unknown path %q", p)
	}
	return p, true, nil
}

// DeleteVault removes the credential, wrapped key and path records
func (r *Records) DeleteVault(ctx context.Context) error {
	var errs []error
	for _, key := range []string{CredentialKey, WrappedKeyKey, KeyPathKey} {
		if err := r.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Records) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, key, data)
}

func (r *Records) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
