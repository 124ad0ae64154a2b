package model

import (
	"math/big"
	"time"
)

// Phase is the lifecycle state of one game
type Phase string

const (
	PhaseCreated        Phase = "created"
	PhaseOpponentPlayed Phase = "opponent_played"
	PhaseResolved       Phase = "resolved"
	PhaseJ1TimedOut     Phase = "j1_timed_out"
	PhaseJ2TimedOut     Phase = "j2_timed_out"
	// PhaseClosed is a zero-stake game whose opponent played, settled by a
	// reveal or J1 timeout that this device did not observe
	PhaseClosed Phase = "closed"
)

// Terminal reports whether no further transition is possible
func (p Phase) Terminal() bool {
	return p != PhaseCreated && p != PhaseOpponentPlayed
}

// TimeoutRole selects which timeout path a claim uses
type TimeoutRole string

const (
	// TimeoutRoleJ1 claims the pot for player 2 when player 1 never revealed
	TimeoutRoleJ1 TimeoutRole = "j1"
	// TimeoutRoleJ2 refunds player 1 when player 2 never played
	TimeoutRoleJ2 TimeoutRole = "j2"
)

// GameSession is a read-only mirror of one game's ledger state
type GameSession struct {
	Address       Address
	Player1       Address
	Player2       Address
	Commitment    Commitment
	OpponentMove  Move
	Stake         *big.Int // per player, in wei
	LastAction    time.Time
	TimeoutWindow time.Duration
}

// Resolved reports whether the escrow has been paid out
func (g *GameSession) Resolved() bool {
	return g.Stake == nil || g.Stake.Sign() == 0
}

// OpponentPlayed reports whether player 2 has committed a move
func (g *GameSession) OpponentPlayed() bool {
	return g.OpponentMove != MoveNone
}

// Phase derives the lifecycle state. result is the locally cached reveal
// outcome, or nil.
func (g *GameSession) Phase(result *GameResult) Phase {
	switch {
	case !g.Resolved() && !g.OpponentPlayed():
		return PhaseCreated
	case !g.Resolved():
		return PhaseOpponentPlayed
	case result != nil && result.TimedOut == TimeoutRoleJ1:
		return PhaseJ1TimedOut
	case result != nil && result.TimedOut == TimeoutRoleJ2:
		return PhaseJ2TimedOut
	case result != nil:
		return PhaseResolved
	case !g.OpponentPlayed():
		return PhaseJ2TimedOut
	default:
		return PhaseClosed
	}
}

// Winner identifies the winning side of a resolved game
type Winner string

const (
	WinnerPlayer1 Winner = "player1"
	WinnerPlayer2 Winner = "player2"
	WinnerTie     Winner = "tie"
)

// GameResult is the adjudicated outcome of a game closed from this device.
// TimedOut is set when a timeout claim closed it; Move1 is then unknown.
type GameResult struct {
	Winner   Winner      `json:"winner"`
	Move1    Move        `json:"move1,omitempty"`
	Move2    Move        `json:"move2,omitempty"`
	TimedOut TimeoutRole `json:"timed_out,omitempty"`
}
