package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mcoot/rpslsgame/internal/model"
)

const (
	// DefaultIterations is the PBKDF2 work factor for wrapping keys
	DefaultIterations = 100_000
	kdfSaltSize       = 16
	nonceSize         = 12
	secretSize        = 1 + model.SaltSize
	// MinPinLength is the shortest PIN accepted on the PIN path
	MinPinLength = 4
)

// prfMaterial turns PRF output into password material
func prfMaterial(out []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(out))
}

// pinMaterial binds a PIN to one credential so the PIN alone is insufficient
func pinMaterial(pin string, credentialID []byte) []byte {
	return []byte(pin + "-" + base64.StdEncoding.EncodeToString(credentialID))
}

func deriveWrappingKey(material, kdfSalt []byte, iterations int) []byte {
	return pbkdf2.Key(material, kdfSalt, iterations, MasterKeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext under key with the given 12-byte nonce
func seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// open reverses seal. Any failure is reported as ErrDecryptionFailed.
func open(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != nonceSize {
		return nil, model.ErrDecryptionFailed
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, model.ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, model.ErrDecryptionFailed
	}
	return plaintext, nil
}

func encodeSecret(move model.Move, salt model.Salt) []byte {
	out := make([]byte, secretSize)
	out[0] = byte(move)
	copy(out[1:], salt[:])
	return out
}

func decodeSecret(b []byte) (model.Move, model.Salt, error) {
	if len(b) != secretSize || !model.Move(b[0]).Valid() {
		return model.MoveNone, model.Salt{}, model.ErrDecryptionFailed
	}
	var salt model.Salt
	copy(salt[:], b[1:])
	return model.Move(b[0]), salt, nil
}
