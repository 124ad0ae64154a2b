package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/session"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGamePlayCmd())
	cmd.AddCommand(newGameRevealCmd())
	cmd.AddCommand(newGameStatusCmd())
	cmd.AddCommand(newGameTimeoutCmd())
	cmd.AddCommand(newGameListCmd())

	return cmd
}

func newGameCreateCmd() *cobra.Command {
	var opponent, move, stake string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Commit to a move and deploy a new game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.ParseMove(move)
			if err != nil {
				return err
			}
			wei, err := ledger.ParseEther(stake)
			if err != nil {
				return err
			}

			req := session.CreateRequest{
				Opponent: model.Address(opponent),
				Move:     m,
				Stake:    wei,
			}
			if registered, err := app.Vault.Registered(cmd.Context()); err != nil {
				return err
			} else if registered {
				if req.PIN, err = vaultPIN(cmd.Context()); err != nil {
					return err
				}
			}

			result, err := app.Sessions.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&opponent, "opponent", "", "Player 2 address")
	cmd.Flags().StringVar(&move, "move", "", "Your move: rock, paper, scissors, spock, lizard")
	cmd.Flags().StringVar(&stake, "stake", "", "Stake in ETH, e.g. 0.01")
	_ = cmd.MarkFlagRequired("opponent")
	_ = cmd.MarkFlagRequired("move")
	_ = cmd.MarkFlagRequired("stake")

	return cmd
}

func newGamePlayCmd() *cobra.Command {
	var move string

	cmd := &cobra.Command{
		Use:   "play <address>",
		Short: "Play as player 2, matching the stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.ParseMove(move)
			if err != nil {
				return err
			}
			game := model.Address(args[0])

			if err := app.Sessions.Play(cmd.Context(), game, m); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage(fmt.Sprintf("Played %s in %s", m, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&move, "move", "", "Your move: rock, paper, scissors, spock, lizard")
	_ = cmd.MarkFlagRequired("move")

	return cmd
}

func newGameRevealCmd() *cobra.Command {
	var move, salt string

	cmd := &cobra.Command{
		Use:   "reveal <address>",
		Short: "Reveal your move and settle the game",
		Long: `Reveal opens the commitment made at creation and pays out the stake.

The stored opening is used unless --move and --salt are both given. If the
vault cannot be unlocked, reveal with the move and salt recorded by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game := model.Address(args[0])
			var req session.RevealRequest

			switch {
			case move != "" && salt != "":
				m, err := model.ParseMove(move)
				if err != nil {
					return err
				}
				s, err := model.ParseSalt(salt)
				if err != nil {
					return err
				}
				req.Move, req.Salt = m, &s
			case move != "" || salt != "":
				return fmt.Errorf("%w: --move and --salt must be given together", model.ErrValidation)
			default:
				pin, err := vaultPIN(cmd.Context())
				if err != nil {
					return withManualHint(err)
				}
				req.PIN = pin
			}

			result, err := app.Sessions.Reveal(cmd.Context(), game, req)
			if err != nil {
				return withManualHint(err)
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&move, "move", "", "Move committed to (manual reveal)")
	cmd.Flags().StringVar(&salt, "salt", "", "Salt as decimal or 0x-hex (manual reveal)")

	return cmd
}

// withManualHint points the user at a manual reveal when the vault fails
func withManualHint(err error) error {
	if errors.Is(err, model.ErrVault) {
		return fmt.Errorf("%w; reveal manually with --move and --salt", err)
	}
	return err
}

func newGameStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <address>",
		Short: "Show the live state of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := app.Sessions.Load(cmd.Context(), model.Address(args[0]))
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(view)
			return nil
		},
	}
}

func newGameTimeoutCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "timeout <address>",
		Short: "Claim the stake from a stalled game",
		Long: `Timeout closes a game whose other player has stopped responding.

j2 refunds player 1 when player 2 never played; j1 pays player 2 when
player 1 never revealed. Without --role the claim is inferred from the game.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := model.TimeoutRole(role)
			switch r {
			case "", model.TimeoutRoleJ1, model.TimeoutRoleJ2:
			default:
				return fmt.Errorf("%w: role must be j1 or j2", model.ErrValidation)
			}

			result, err := app.Sessions.ClaimTimeout(cmd.Context(), model.Address(args[0]), r)
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Timeout to claim: j1 or j2")

	return cmd
}

func newGameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List games this device holds an opening for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := app.Sessions.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(pending)
			return nil
		},
	}
}
