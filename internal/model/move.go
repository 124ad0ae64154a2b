package model

import (
	"strconv"
	"strings"
)

// Move is one of the five hand shapes. MoveNone means "not yet played".
type Move uint8

const (
	MoveNone Move = iota
	MoveRock
	MovePaper
	MoveScissors
	MoveSpock
	MoveLizard
)

var moveNames = [...]string{"None", "Rock", "Paper", "Scissors", "Spock", "Lizard"}

// AllMoves lists the playable moves in ledger encoding order
var AllMoves = []Move{MoveRock, MovePaper, MoveScissors, MoveSpock, MoveLizard}

// Valid reports whether m is a playable move
func (m Move) Valid() bool {
	return m >= MoveRock && m <= MoveLizard
}

func (m Move) String() string {
	if int(m) < len(moveNames) {
		return moveNames[m]
	}
	return "Move(" + strconv.Itoa(int(m)) + ")"
}

// ParseMove accepts a move name (any case) or its number 1-5
func ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		m := Move(n)
		if n < 0 || n > 255 || !m.Valid() {
			return MoveNone, ErrInvalidMove
		}
		return m, nil
	}
	for i, name := range moveNames {
		if strings.EqualFold(s, name) && Move(i).Valid() {
			return Move(i), nil
		}
	}
	return MoveNone, ErrInvalidMove
}
