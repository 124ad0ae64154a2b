// Package outcome adjudicates the five-move extension of rock-paper-scissors.
package outcome

import "github.com/mcoot/rpslsgame/internal/model"

// cyclePosition places each move on the cycle Rock, Spock, Paper, Lizard,
// Scissors. Each move beats the one and two places before it.
var cyclePosition = map[model.Move]int{
	model.MoveRock:     0,
	model.MoveSpock:    1,
	model.MovePaper:    2,
	model.MoveLizard:   3,
	model.MoveScissors: 4,
}

// Wins reports whether a defeats b. Equal moves and unplayed moves never win.
func Wins(a, b model.Move) bool {
	if a == b || !a.Valid() || !b.Valid() {
		return false
	}
	d := ((cyclePosition[a]-cyclePosition[b])%5 + 5) % 5
	return d == 1 || d == 2
}

// Resolve decides the winner of move1 (player 1) against move2 (player 2).
// A tie is the case where neither direction wins.
func Resolve(move1, move2 model.Move) model.Winner {
	switch {
	case Wins(move1, move2):
		return model.WinnerPlayer1
	case Wins(move2, move1):
		return model.WinnerPlayer2
	default:
		return model.WinnerTie
	}
}

// Result builds the GameResult for a reveal of move1 against move2
func Result(move1, move2 model.Move) *model.GameResult {
	return &model.GameResult{
		Winner: Resolve(move1, move2),
		Move1:  move1,
		Move2:  move2,
	}
}
