// Package ledger is the boundary to the contract that escrows stakes and
// enforces the game's guards. One contract instance holds one game.
package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/mcoot/rpslsgame/internal/model"
)

// DefaultTimeout is the contract's TIMEOUT constant
const DefaultTimeout = 5 * time.Minute

// Ledger is the call interface of the game contract, bound to one account.
// State-changing calls return once the call is confirmed. Reverts surface as
// errors wrapping model.ErrLedger.
type Ledger interface {
	// Account is the address calls are sent from
	Account() model.Address

	// Deploy creates a game committing to commitment against opponent,
	// escrowing stake from the caller
	Deploy(ctx context.Context, commitment model.Commitment, opponent model.Address, stake *big.Int) (model.Address, error)

	// Play submits player 2's move, paying stake
	Play(ctx context.Context, game model.Address, move model.Move, stake *big.Int) error

	// Solve reveals player 1's opening and pays out
	Solve(ctx context.Context, game model.Address, move model.Move, salt model.Salt) error

	// J1Timeout pays the pot to player 2 when player 1 failed to reveal
	J1Timeout(ctx context.Context, game model.Address) error

	// J2Timeout refunds player 1 when player 2 never played
	J2Timeout(ctx context.Context, game model.Address) error

	// State reads every public view of the game
	State(ctx context.Context, game model.Address) (*model.GameSession, error)

	// Wins evaluates the contract's own win relation
	Wins(ctx context.Context, game model.Address, a, b model.Move) (bool, error)

	// Balance returns an account's balance in wei
	Balance(ctx context.Context, account model.Address) (*big.Int, error)
}
