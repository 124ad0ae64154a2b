// Package commitment builds and checks the hiding, binding digests players
// publish before revealing a move.
//
// The digest is Keccak-256 over the packed encoding the ledger's solve guard
// recomputes: one byte of move followed by the 32-byte big-endian salt.
package commitment

import (
	"crypto/subtle"

	"golang.org/x/crypto/sha3"

	"github.com/mcoot/rpslsgame/internal/model"
)

// encodedSize is the fixed width of the hashed preimage
const encodedSize = 1 + model.SaltSize

// Commit returns the commitment for (move, salt). The move must be playable.
func Commit(move model.Move, salt model.Salt) (model.Commitment, error) {
	if !move.Valid() {
		return model.Commitment{}, model.ErrInvalidMove
	}

	var preimage [encodedSize]byte
	preimage[0] = byte(move)
	copy(preimage[1:], salt[:])

	h := sha3.NewLegacyKeccak256()
	h.Write(preimage[:])

	var c model.Commitment
	h.Sum(c[:0])
	return c, nil
}

// Verify recomputes the commitment for (move, salt) and compares it with c
func Verify(c model.Commitment, move model.Move, salt model.Salt) bool {
	got, err := Commit(move, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got[:], c[:]) == 1
}
