package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mcoot/rpslsgame/internal/model"
)

// stdinIsTerminal is replaced in tests
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret prompts on stderr and reads a line from the terminal without echo
var readSecret = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// confirmPresence stands in for the authenticator's user-presence gesture.
// Without a terminal the ceremony is approved.
func confirmPresence(ctx context.Context, prompt string) bool {
	if !stdinIsTerminal() {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [press Enter to approve, Ctrl-D to cancel] ", prompt)

	answered := make(chan bool, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		answered <- err == nil
	}()
	select {
	case ok := <-answered:
		return ok
	case <-ctx.Done():
		return false
	}
}

// vaultPIN returns the PIN to unlock the vault with: the --pin flag, or a
// prompt when the vault is on the PIN path and a terminal is attached.
func vaultPIN(ctx context.Context) (string, error) {
	if cfg.PIN != "" {
		return cfg.PIN, nil
	}
	status, err := app.Vault.Status(ctx)
	if err != nil {
		return "", err
	}
	if status.KeyPath != model.KeyPathPIN || !stdinIsTerminal() {
		return "", nil
	}
	return readSecret("Vault PIN: ")
}

// newPIN prompts twice for a PIN to register with
func newPIN() (string, error) {
	if !stdinIsTerminal() {
		return "", model.ErrPinRequired
	}
	first, err := readSecret("Choose a vault PIN: ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("Repeat the PIN: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("PINs do not match")
	}
	return first, nil
}
