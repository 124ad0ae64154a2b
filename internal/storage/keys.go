package storage

import (
	"strings"

	"github.com/mcoot/rpslsgame/internal/model"
)

// Key prefixes. Per-game records are keyed by lowercase game address.
const (
	SecretPrefix = "rpsls:secret:"
	ResultPrefix = "rpsls:result:"

	CredentialKey = "rpsls:vault:credential"
	WrappedKeyKey = "rpsls:vault:wrapped_key"
	KeyPathKey    = "rpsls:vault:key_path"
)

// SecretKey returns the key of the pending-secret record for a game
func SecretKey(addr model.Address) string {
	return SecretPrefix + strings.ToLower(string(addr))
}

// ResultKey returns the key of the cached result record for a game
func ResultKey(addr model.Address) string {
	return ResultPrefix + strings.ToLower(string(addr))
}
