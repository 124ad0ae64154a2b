package model

import (
	"errors"
	"fmt"
	"time"
)

// Error categories. Every specific error below unwraps to exactly one of these.
var (
	// ErrValidation marks input rejected before any external call
	ErrValidation = errors.New("validation error")
	// ErrLedger marks a ledger call that reverted or whose guard is not yet satisfied
	ErrLedger = errors.New("ledger error")
	// ErrVault marks an authenticator or decryption failure
	ErrVault = errors.New("vault error")
	// ErrState marks a locally detected state conflict
	ErrState = errors.New("state error")
)

// kindError is a sentinel that belongs to a parent error (usually a category)
type kindError struct {
	parent error
	msg    string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.parent }

func newError(parent error, msg string) error {
	return &kindError{parent: parent, msg: msg}
}

// Validation errors
var (
	ErrInvalidAddress = newError(ErrValidation, "invalid address")
	ErrInvalidStake   = newError(ErrValidation, "stake must be greater than zero")
	ErrSelfPlay       = newError(ErrValidation, "cannot play against yourself")
	ErrInvalidMove    = newError(ErrValidation, "invalid move")
	ErrInvalidSalt    = newError(ErrValidation, "invalid salt")
	ErrPinTooShort    = newError(ErrValidation, "PIN must be at least 4 characters")
)

// Ledger errors
var (
	ErrLedgerRejected    = newError(ErrLedger, "ledger rejected call")
	ErrInsufficientFunds = newError(ErrLedger, "insufficient funds")
	ErrGameNotFound      = newError(ErrLedger, "no game at address")
	ErrTimeoutNotElapsed = newError(ErrLedger, "timeout period has not passed yet")
)

// Vault errors
var (
	ErrAuthenticatorUnavailable = newError(ErrVault, "platform authenticator unavailable")
	ErrNotRegistered            = newError(ErrAuthenticatorUnavailable, "no registered credential")
	ErrAlreadyRegistered        = newError(ErrVault, "a credential is already registered")
	ErrPinRequired              = newError(ErrVault, "PIN required: authenticator returned no PRF output")
	ErrAuthenticationFailed     = newError(ErrVault, "authentication failed")
	ErrDecryptionFailed         = newError(ErrVault, "decryption failed")
	ErrAuthenticationInProgress = newError(ErrVault, "another authentication is in progress")
)

// State errors
var (
	ErrAlreadyResolved    = newError(ErrState, "game is already resolved")
	ErrNoStoredSecret     = newError(ErrState, "no saved move and salt for this game")
	ErrOpponentNotPlayed  = newError(ErrState, "opponent has not played yet")
	ErrOpponentPlayed     = newError(ErrState, "opponent has already played")
	ErrNotPlayer1         = newError(ErrState, "account is not player 1 of this game")
	ErrNotPlayer2         = newError(ErrState, "account is not player 2 of this game")
	ErrCommitmentMismatch = newError(ErrState, "move and salt do not match the recorded commitment")
)

// TimeoutPendingError reports a timeout claim made before the window elapsed
type TimeoutPendingError struct {
	Role      TimeoutRole
	Remaining time.Duration
}

func (e *TimeoutPendingError) Error() string {
	return fmt.Sprintf("%s: %s timeout claimable in %s", ErrTimeoutNotElapsed, e.Role, FormatDuration(e.Remaining))
}

func (e *TimeoutPendingError) Unwrap() error { return ErrTimeoutNotElapsed }

// UnsavedSecretError is returned when the ledger holds a commitment whose
// opening could not be persisted locally. The opening must be recorded by hand.
type UnsavedSecretError struct {
	Address Address
	Move    Move
	Salt    Salt
	Err     error
}

func (e *UnsavedSecretError) Error() string {
	return fmt.Sprintf("game %s created but its move and salt were not saved (%v); record move=%s salt=%s to reveal later",
		e.Address, e.Err, e.Move, e.Salt)
}

func (e *UnsavedSecretError) Unwrap() error { return e.Err }

// FormatDuration renders a wait time as "4m 59s"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
