// Package session drives one game from commitment to payout. Every
// state-changing call re-reads the ledger first; the in-memory mirror is a
// display cache only.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/mcoot/rpslsgame/internal/dependencies/clock"
	"github.com/mcoot/rpslsgame/internal/dependencies/random"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/commitment"
	"github.com/mcoot/rpslsgame/internal/services/outcome"
	"github.com/mcoot/rpslsgame/internal/services/timeout"
	"github.com/mcoot/rpslsgame/internal/services/vault"
	"github.com/mcoot/rpslsgame/internal/storage"
)

// SecretVault is the part of the vault the manager uses
type SecretVault interface {
	Registered(ctx context.Context) (bool, error)
	DeriveKey(ctx context.Context, pin string) (*vault.MasterKey, error)
	EncryptSecret(key *vault.MasterKey, move model.Move, salt model.Salt) (*model.EncryptedSecret, error)
	DecryptSecret(key *vault.MasterKey, enc *model.EncryptedSecret) (model.Move, model.Salt, error)
}

// Manager runs games for one ledger account
type Manager struct {
	ledger  ledger.Ledger
	vault   SecretVault
	records *storage.Records
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu     sync.Mutex
	mirror map[model.Address]*model.GameSession
}

// NewManager creates a Manager. vault may be nil, in which case openings are
// stored in cleartext.
func NewManager(
	ledger ledger.Ledger,
	vault SecretVault,
	records *storage.Records,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		ledger:  ledger,
		vault:   vault,
		records: records,
		clock:   clock,
		random:  random,
		logger:  logger,
		mirror:  make(map[model.Address]*model.GameSession),
	}
}

// Account returns the ledger account this manager plays as
func (m *Manager) Account() model.Address {
	return m.ledger.Account()
}

// CreateRequest describes a new game
type CreateRequest struct {
	Opponent model.Address
	Move     model.Move
	Stake    *big.Int
	// PIN unlocks a PIN-path vault
	PIN string
}

// CreateResult is a deployed game
type CreateResult struct {
	Address    model.Address    `json:"address"`
	Commitment model.Commitment `json:"commitment"`
	Encrypted  bool             `json:"encrypted"`
}

// Create validates the request, commits to the move with a fresh salt,
// deploys the game and stores the opening. When the vault is registered the
// master key is unlocked before deploying, so a vault failure never leaves an
// unrecoverable game behind.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	opponent, err := model.ParseAddress(string(req.Opponent))
	if err != nil || opponent.IsZero() {
		return nil, model.ErrInvalidAddress
	}
	if req.Stake == nil || req.Stake.Sign() <= 0 {
		return nil, model.ErrInvalidStake
	}
	if opponent == m.ledger.Account() {
		return nil, model.ErrSelfPlay
	}
	if !req.Move.Valid() {
		return nil, model.ErrInvalidMove
	}

	salt, err := model.NewSalt(m.random)
	if err != nil {
		return nil, err
	}
	c, err := commitment.Commit(req.Move, salt)
	if err != nil {
		return nil, err
	}

	secret := &model.StoredSecret{CreatedAt: m.clock.Now()}
	sealed, err := m.seal(ctx, req.PIN, req.Move, salt)
	if err != nil {
		return nil, err
	}
	if sealed != nil {
		secret.Encrypted = sealed
	} else {
		secret.Move = req.Move
		secret.Salt = salt
	}

	addr, err := m.ledger.Deploy(ctx, c, opponent, req.Stake)
	if err != nil {
		return nil, err
	}
	m.logger.Info("game created", "address", addr, "opponent", opponent, "stake", req.Stake, "encrypted", sealed != nil)

	secret.Address = addr
	if err := m.records.SaveSecret(ctx, secret); err != nil {
		m.logger.Error("failed to save opening", "address", addr, "error", err)
		return nil, &model.UnsavedSecretError{Address: addr, Move: req.Move, Salt: salt, Err: err}
	}

	return &CreateResult{Address: addr, Commitment: c, Encrypted: sealed != nil}, nil
}

// seal encrypts the opening when a vault is registered, returning nil otherwise
func (m *Manager) seal(ctx context.Context, pin string, move model.Move, salt model.Salt) (*model.EncryptedSecret, error) {
	if m.vault == nil {
		return nil, nil
	}
	registered, err := m.vault.Registered(ctx)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, nil
	}
	key, err := m.vault.DeriveKey(ctx, pin)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()
	return m.vault.EncryptSecret(key, move, salt)
}

// Play submits player 2's move, paying the stake the game already holds
func (m *Manager) Play(ctx context.Context, game model.Address, move model.Move) error {
	if !move.Valid() {
		return model.ErrInvalidMove
	}
	st, err := m.refresh(ctx, game)
	if err != nil {
		return err
	}
	game = st.Address
	switch {
	case st.Resolved():
		return model.ErrAlreadyResolved
	case st.Player2 != m.ledger.Account():
		return model.ErrNotPlayer2
	case st.OpponentPlayed():
		return model.ErrOpponentPlayed
	}
	if err := m.ledger.Play(ctx, game, move, st.Stake); err != nil {
		return err
	}
	m.logger.Info("move played", "address", game)
	_, _ = m.refresh(ctx, game)
	return nil
}

// RevealRequest supplies the opening. When Move and Salt are both set they
// are used directly; otherwise the stored opening is used, unlocking the
// vault with PIN if it is encrypted.
type RevealRequest struct {
	Move model.Move
	Salt *model.Salt
	PIN  string
}

// Reveal opens player 1's commitment and settles the game. The stored
// opening is deleted only after the ledger confirms the reveal.
func (m *Manager) Reveal(ctx context.Context, game model.Address, req RevealRequest) (*model.GameResult, error) {
	st, err := m.refresh(ctx, game)
	if err != nil {
		return nil, err
	}
	game = st.Address
	switch {
	case st.Resolved():
		return nil, model.ErrAlreadyResolved
	case st.Player1 != m.ledger.Account():
		return nil, model.ErrNotPlayer1
	case !st.OpponentPlayed():
		return nil, model.ErrOpponentNotPlayed
	}

	move, salt, err := m.opening(ctx, game, req)
	if err != nil {
		return nil, err
	}
	if !commitment.Verify(st.Commitment, move, salt) {
		return nil, model.ErrCommitmentMismatch
	}

	if err := m.ledger.Solve(ctx, game, move, salt); err != nil {
		return nil, err
	}

	result := m.adjudicate(ctx, game, move, st.OpponentMove)
	m.logger.Info("game revealed", "address", game, "winner", result.Winner)

	if err := m.records.SaveResult(ctx, game, result); err != nil {
		m.logger.Warn("failed to cache result", "address", game, "error", err)
	}
	if err := m.records.DeleteSecret(ctx, game); err != nil {
		m.logger.Warn("failed to delete opening", "address", game, "error", err)
	}
	m.forget(game)
	return result, nil
}

// opening resolves the (move, salt) to reveal
func (m *Manager) opening(ctx context.Context, game model.Address, req RevealRequest) (model.Move, model.Salt, error) {
	if req.Salt != nil {
		if !req.Move.Valid() {
			return model.MoveNone, model.Salt{}, model.ErrInvalidMove
		}
		return req.Move, *req.Salt, nil
	}

	secret, ok, err := m.records.GetSecret(ctx, game)
	if err != nil {
		return model.MoveNone, model.Salt{}, err
	}
	if !ok {
		return model.MoveNone, model.Salt{}, model.ErrNoStoredSecret
	}
	if !secret.IsEncrypted() {
		return secret.Move, secret.Salt, nil
	}

	if m.vault == nil {
		return model.MoveNone, model.Salt{}, model.ErrAuthenticatorUnavailable
	}
	key, err := m.vault.DeriveKey(ctx, req.PIN)
	if err != nil {
		return model.MoveNone, model.Salt{}, err
	}
	defer key.Destroy()
	return m.vault.DecryptSecret(key, secret.Encrypted)
}

// adjudicate resolves the outcome locally and cross-checks it against the
// ledger's own relation. On disagreement the ledger, which paid out, wins.
func (m *Manager) adjudicate(ctx context.Context, game model.Address, move1, move2 model.Move) *model.GameResult {
	result := outcome.Result(move1, move2)

	p1Wins, err1 := m.ledger.Wins(ctx, game, move1, move2)
	p2Wins, err2 := m.ledger.Wins(ctx, game, move2, move1)
	if err := errors.Join(err1, err2); err != nil {
		m.logger.Warn("could not cross-check outcome with ledger", "address", game, "error", err)
		return result
	}

	ledgerWinner := model.WinnerTie
	switch {
	case p1Wins && !p2Wins:
		ledgerWinner = model.WinnerPlayer1
	case p2Wins && !p1Wins:
		ledgerWinner = model.WinnerPlayer2
	}
	if ledgerWinner != result.Winner {
		m.logger.Warn("ledger outcome differs from local outcome",
			"address", game, "local", result.Winner, "ledger", ledgerWinner)
		result.Winner = ledgerWinner
	}
	return result
}

// ClaimResult is a settled timeout claim
type ClaimResult struct {
	Role   model.TimeoutRole `json:"role"`
	Result *model.GameResult `json:"result"`
}

// ClaimTimeout closes a stalled game. An empty role is inferred from the
// live state: J1 once the opponent has played, J2 before. The claim is
// rejected locally until the window plus safety margin has elapsed.
func (m *Manager) ClaimTimeout(ctx context.Context, game model.Address, role model.TimeoutRole) (*ClaimResult, error) {
	st, err := m.refresh(ctx, game)
	if err != nil {
		return nil, err
	}
	game = st.Address
	if st.Resolved() {
		return nil, model.ErrAlreadyResolved
	}

	if role == "" {
		role = model.TimeoutRoleJ2
		if st.OpponentPlayed() {
			role = model.TimeoutRoleJ1
		}
	}
	switch role {
	case model.TimeoutRoleJ1:
		if !st.OpponentPlayed() {
			return nil, model.ErrOpponentNotPlayed
		}
	case model.TimeoutRoleJ2:
		if st.OpponentPlayed() {
			return nil, model.ErrOpponentPlayed
		}
	default:
		return nil, fmt.Errorf("%w: unknown timeout role %q", model.ErrValidation, role)
	}

	status := timeout.ForSession(st).Status(m.clock.Now())
	if !status.CanClaim {
		return nil, &model.TimeoutPendingError{Role: role, Remaining: status.Remaining}
	}

	result := &model.GameResult{TimedOut: role}
	if role == model.TimeoutRoleJ1 {
		err = m.ledger.J1Timeout(ctx, game)
		result.Winner = model.WinnerPlayer2
		result.Move2 = st.OpponentMove
	} else {
		err = m.ledger.J2Timeout(ctx, game)
		result.Winner = model.WinnerPlayer1
	}
	if err != nil {
		return nil, err
	}
	m.logger.Info("timeout claimed", "address", game, "role", role)

	if err := m.records.SaveResult(ctx, game, result); err != nil {
		m.logger.Warn("failed to cache result", "address", game, "error", err)
	}
	if _, err := m.records.CloseSecret(ctx, game, m.clock.Now()); err != nil {
		m.logger.Warn("failed to mark opening closed", "address", game, "error", err)
	}
	m.forget(game)
	return &ClaimResult{Role: role, Result: result}, nil
}

// Result returns the cached outcome of a game closed from this device
func (m *Manager) Result(ctx context.Context, game model.Address) (*model.GameResult, bool, error) {
	return m.records.GetResult(ctx, game)
}

// PendingGame is a game this device still holds an opening for
type PendingGame struct {
	Address   model.Address `json:"address"`
	Encrypted bool          `json:"encrypted"`
	CreatedAt time.Time     `json:"created_at"`
	// LastSeen is the state this manager last read from the ledger, if any.
	// It is for display only and may be stale.
	LastSeen *model.GameSession `json:"last_seen,omitempty"`
}

// ListPending lists stored openings of games that are still open, without
// exposing the openings. It makes no ledger calls.
func (m *Manager) ListPending(ctx context.Context) ([]PendingGame, error) {
	secrets, err := m.records.ListSecrets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PendingGame, 0, len(secrets))
	for _, s := range secrets {
		if s.Closed() {
			continue
		}
		p := PendingGame{Address: s.Address, Encrypted: s.IsEncrypted(), CreatedAt: s.CreatedAt}
		if st, ok := m.lastSeen(s.Address); ok {
			p.LastSeen = st
		}
		out = append(out, p)
	}
	return out, nil
}

// lastSeen returns the mirrored state of an unresolved game
func (m *Manager) lastSeen(game model.Address) (*model.GameSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.mirror[game]
	return st, ok
}

// refresh re-reads the ledger and updates the mirror
func (m *Manager) refresh(ctx context.Context, game model.Address) (*model.GameSession, error) {
	game, err := model.ParseAddress(string(game))
	if err != nil {
		return nil, err
	}
	st, err := m.ledger.State(ctx, game)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.Resolved() {
		delete(m.mirror, game)
	} else {
		m.mirror[game] = st
	}
	return st, nil
}

func (m *Manager) forget(game model.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mirror, game)
}
