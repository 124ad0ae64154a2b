package session

import (
	"context"

	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/timeout"
)

// Role is how the manager's account relates to a game
type Role string

const (
	RolePlayer1  Role = "player1"
	RolePlayer2  Role = "player2"
	RoleObserver Role = "observer"
)

// View is a freshly read snapshot of one game for display
type View struct {
	Session   *model.GameSession `json:"session"`
	Phase     model.Phase        `json:"phase"`
	Role      Role               `json:"role"`
	Timeout   *timeout.Status    `json:"timeout,omitempty"`
	ClaimRole model.TimeoutRole  `json:"claim_role,omitempty"`
	HasSecret bool               `json:"has_secret"`
	Encrypted bool               `json:"encrypted"`
	Result    *model.GameResult  `json:"result,omitempty"`
}

// Load reads the live state of a game together with what this device knows about it
func (m *Manager) Load(ctx context.Context, game model.Address) (*View, error) {
	st, err := m.refresh(ctx, game)
	if err != nil {
		return nil, err
	}
	result, _, err := m.records.GetResult(ctx, st.Address)
	if err != nil {
		return nil, err
	}
	secret, hasSecret, err := m.records.GetSecret(ctx, st.Address)
	if err != nil {
		return nil, err
	}

	v := &View{
		Session:   st,
		Phase:     st.Phase(result),
		Role:      m.roleIn(st),
		HasSecret: hasSecret,
		Result:    result,
	}
	if hasSecret {
		v.Encrypted = secret.IsEncrypted()
	}
	if !st.Resolved() {
		status := timeout.ForSession(st).Status(m.clock.Now())
		v.Timeout = &status
		v.ClaimRole = model.TimeoutRoleJ2
		if st.OpponentPlayed() {
			v.ClaimRole = model.TimeoutRoleJ1
		}
	}
	return v, nil
}

func (m *Manager) roleIn(st *model.GameSession) Role {
	switch m.ledger.Account() {
	case st.Player1:
		return RolePlayer1
	case st.Player2:
		return RolePlayer2
	default:
		return RoleObserver
	}
}
