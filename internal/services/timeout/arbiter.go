// Package timeout decides when a stalled game can be closed by a timeout claim.
package timeout

import (
	"time"

	"github.com/mcoot/rpslsgame/internal/model"
)

// DefaultMargin absorbs skew between the local clock and ledger block timestamps
const DefaultMargin = 12 * time.Second

// Arbiter computes claim eligibility from the ledger's last-action timestamp.
// It does not check which role may claim; the session manager does.
type Arbiter struct {
	LastAction time.Time
	Window     time.Duration
	Margin     time.Duration
}

// Status is a snapshot of the arbiter at one instant
type Status struct {
	CanClaim  bool          `json:"can_claim"`
	Remaining time.Duration `json:"remaining"`
	Window    time.Duration `json:"window"`
	Margin    time.Duration `json:"margin"`
}

// New creates an Arbiter with the default safety margin
func New(lastAction time.Time, window time.Duration) Arbiter {
	return Arbiter{LastAction: lastAction, Window: window, Margin: DefaultMargin}
}

// ForSession creates an Arbiter from a freshly read game mirror
func ForSession(g *model.GameSession) Arbiter {
	return New(g.LastAction, g.TimeoutWindow)
}

// Remaining is the wait before a claim becomes eligible, never negative,
// rounded up to whole seconds
func (a Arbiter) Remaining(now time.Time) time.Duration {
	elapsed := now.Sub(a.LastAction)
	left := a.Window + a.Margin - elapsed
	if left <= 0 {
		return 0
	}
	if rem := left % time.Second; rem != 0 {
		left += time.Second - rem
	}
	return left
}

// CanClaim reports whether the window plus margin has fully elapsed
func (a Arbiter) CanClaim(now time.Time) bool {
	return a.Remaining(now) == 0
}

// Status snapshots eligibility at now
func (a Arbiter) Status(now time.Time) Status {
	remaining := a.Remaining(now)
	return Status{
		CanClaim:  remaining == 0,
		Remaining: remaining,
		Window:    a.Window,
		Margin:    a.Margin,
	}
}

// Describe renders the remaining wait for people, e.g. "4m 59s"
func (s Status) Describe() string {
	if s.CanClaim {
		return "claimable now"
	}
	return model.FormatDuration(s.Remaining)
}
