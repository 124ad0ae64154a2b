package response

import (
	"time"

	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/session"
)

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Account string `json:"account"`
}

// Timeout describes the local claim window
type Timeout struct {
	ClaimRole        string `json:"claim_role"`
	CanClaim         bool   `json:"can_claim"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Remaining        string `json:"remaining"`
}

// Result is a game outcome cached by this device
type Result struct {
	Winner   string `json:"winner"`
	Move1    string `json:"move1,omitempty"`
	Move2    string `json:"move2,omitempty"`
	TimedOut string `json:"timed_out,omitempty"`
}

// Game represents one game in API responses. It never carries a salt or
// an unrevealed move.
type Game struct {
	Address      string    `json:"address"`
	Player1      string    `json:"player1"`
	Player2      string    `json:"player2"`
	Commitment   string    `json:"commitment"`
	StakeWei     string    `json:"stake_wei"`
	Stake        string    `json:"stake"`
	OpponentMove string    `json:"opponent_move,omitempty"`
	LastAction   time.Time `json:"last_action"`
	Phase        string    `json:"phase"`
	Role         string    `json:"role"`
	HasSecret    bool      `json:"has_secret"`
	Encrypted    bool      `json:"encrypted"`
	Timeout      *Timeout  `json:"timeout,omitempty"`
	Result       *Result   `json:"result,omitempty"`
}

// GameFromView converts a session view
func GameFromView(v *session.View) Game {
	st := v.Session
	g := Game{
		Address:    st.Address.Checksum(),
		Player1:    st.Player1.Checksum(),
		Player2:    st.Player2.Checksum(),
		Commitment: st.Commitment.Hex(),
		StakeWei:   "0",
		Stake:      "0",
		LastAction: st.LastAction.UTC(),
		Phase:      string(v.Phase),
		Role:       string(v.Role),
		HasSecret:  v.HasSecret,
		Encrypted:  v.Encrypted,
	}
	if st.Stake != nil {
		g.StakeWei = st.Stake.String()
		g.Stake = ledger.FormatEther(st.Stake)
	}
	if st.OpponentMove != model.MoveNone {
		g.OpponentMove = st.OpponentMove.String()
	}
	if v.Timeout != nil {
		g.Timeout = &Timeout{
			ClaimRole:        string(v.ClaimRole),
			CanClaim:         v.Timeout.CanClaim,
			RemainingSeconds: int64(v.Timeout.Remaining / time.Second),
			Remaining:        v.Timeout.Describe(),
		}
	}
	if v.Result != nil {
		g.Result = ResultFromModel(v.Result)
	}
	return g
}

// ResultFromModel converts a cached result
func ResultFromModel(r *model.GameResult) *Result {
	out := &Result{Winner: string(r.Winner), TimedOut: string(r.TimedOut)}
	if r.Move1 != model.MoveNone {
		out.Move1 = r.Move1.String()
	}
	if r.Move2 != model.MoveNone {
		out.Move2 = r.Move2.String()
	}
	return out
}

// LastSeen is the server's most recent ledger read of a pending game
type LastSeen struct {
	Stake          string    `json:"stake"`
	OpponentPlayed bool      `json:"opponent_played"`
	LastAction     time.Time `json:"last_action"`
}

// PendingGame is a game this device holds an opening for
type PendingGame struct {
	Address   string    `json:"address"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  *LastSeen `json:"last_seen,omitempty"`
}

// PendingGames is the response for the games list
type PendingGames struct {
	Games []PendingGame `json:"games"`
}

// PendingGamesFromSession converts the pending list
func PendingGamesFromSession(pending []session.PendingGame) PendingGames {
	out := PendingGames{Games: make([]PendingGame, 0, len(pending))}
	for _, p := range pending {
		g := PendingGame{
			Address:   p.Address.Checksum(),
			Encrypted: p.Encrypted,
			CreatedAt: p.CreatedAt.UTC(),
		}
		if st := p.LastSeen; st != nil {
			g.LastSeen = &LastSeen{
				Stake:          ledger.FormatEther(st.Stake),
				OpponentPlayed: st.OpponentPlayed(),
				LastAction:     st.LastAction.UTC(),
			}
		}
		out.Games = append(out.Games, g)
	}
	return out
}
