package cli

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mcoot/rpslsgame/internal/api/response"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/session"
	"github.com/mcoot/rpslsgame/internal/services/vault"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// BalanceResult is an account balance
type BalanceResult struct {
	Account string `json:"account"`
	Wei     string `json:"wei"`
	Ether   string `json:"ether"`
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error to w. An unsaved opening is always shown in
// full since it cannot be recovered any other way.
func (o *Output) PrintError(w io.Writer, err error) {
	if o.format == "json" {
		body := map[string]any{"message": err.Error()}
		var unsaved *model.UnsavedSecretError
		if errors.As(err, &unsaved) {
			body["address"] = unsaved.Address.Checksum()
			body["move"] = unsaved.Move.String()
			body["salt"] = unsaved.Salt.String()
		}
		data, _ := json.Marshal(map[string]any{"error": body})
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err)
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case *session.CreateResult:
		o.printCreated(v)
	case *session.View:
		o.printView(v)
	case *model.GameResult:
		o.printResult(v)
	case *session.ClaimResult:
		fmt.Fprintf(o.w, "%s timeout claimed\n", v.Role)
		o.printResult(v.Result)
	case []session.PendingGame:
		o.printPending(v)
	case *vault.Status:
		o.printVaultStatus(v)
	case BalanceResult:
		fmt.Fprintf(o.w, "%s: %s ETH\n", v.Account, v.Ether)
	case response.Health:
		fmt.Fprintf(o.w, "Server: %s (account %s)\n", v.Status, v.Account)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printCreated(r *session.CreateResult) {
	fmt.Fprintf(o.w, "Game created: %s\n", r.Address.Checksum())
	fmt.Fprintf(o.w, "Commitment:   %s\n", r.Commitment.Hex())
	if r.Encrypted {
		fmt.Fprintln(o.w, "Opening stored encrypted under the vault key")
	} else {
		fmt.Fprintln(o.w, "Opening stored in cleartext on this device")
	}
}

func (o *Output) printView(v *session.View) {
	st := v.Session
	fmt.Fprintf(o.w, "Game:     %s\n", st.Address.Checksum())
	fmt.Fprintf(o.w, "Phase:    %s\n", v.Phase)
	fmt.Fprintf(o.w, "Role:     %s\n", v.Role)
	fmt.Fprintf(o.w, "Player 1: %s\n", st.Player1.Checksum())
	fmt.Fprintf(o.w, "Player 2: %s\n", st.Player2.Checksum())
	stake := "0"
	if st.Stake != nil {
		stake = ledger.FormatEther(st.Stake)
	}
	fmt.Fprintf(o.w, "Stake:    %s ETH each\n", stake)
	if st.OpponentMove != model.MoveNone {
		fmt.Fprintf(o.w, "Player 2 played: %s\n", st.OpponentMove)
	}
	fmt.Fprintf(o.w, "Last action: %s\n", st.LastAction.Local().Format(time.DateTime))
	if v.Timeout != nil {
		if v.Timeout.CanClaim {
			fmt.Fprintf(o.w, "Timeout (%s): claimable now\n", v.ClaimRole)
		} else {
			fmt.Fprintf(o.w, "Timeout (%s): claimable in %s\n", v.ClaimRole, v.Timeout.Describe())
		}
	}
	if v.HasSecret {
		kind := "cleartext"
		if v.Encrypted {
			kind = "encrypted"
		}
		fmt.Fprintf(o.w, "Opening: stored (%s)\n", kind)
	}
	if v.Result != nil {
		o.printResult(v.Result)
	}
}

func (o *Output) printResult(r *model.GameResult) {
	switch r.Winner {
	case model.WinnerTie:
		fmt.Fprint(o.w, "Result: tie, stakes refunded")
	default:
		fmt.Fprintf(o.w, "Result: %s wins", r.Winner)
	}
	if r.Move1 != model.MoveNone && r.Move2 != model.MoveNone {
		fmt.Fprintf(o.w, " (%s vs %s)", r.Move1, r.Move2)
	}
	fmt.Fprintln(o.w)
}

func (o *Output) printPending(games []session.PendingGame) {
	if len(games) == 0 {
		fmt.Fprintln(o.w, "No pending games")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tENCRYPTED\tCREATED")
	for _, g := range games {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", g.Address.Checksum(), g.Encrypted, g.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func (o *Output) printVaultStatus(s *vault.Status) {
	if !s.Registered {
		fmt.Fprintln(o.w, "Vault: not registered (openings are stored in cleartext)")
		return
	}
	fmt.Fprintf(o.w, "Vault: registered, %s key path\n", s.KeyPath)
	fmt.Fprintf(o.w, "Credential: %s\n", base64.RawURLEncoding.EncodeToString(s.CredentialID))
	fmt.Fprintf(o.w, "Created: %s\n", s.CreatedAt.Local().Format(time.DateTime))
}
