package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
)

func newDevchainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devchain",
		Short: "Local development ledger commands",
	}

	cmd.AddCommand(newDevchainFundCmd())
	cmd.AddCommand(newDevchainBalanceCmd())

	return cmd
}

func newDevchainFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <ether>",
		Short: "Credit ETH to a devchain account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireChain(); err != nil {
				return err
			}
			account, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := ledger.ParseEther(args[1])
			if err != nil {
				return err
			}

			if err := app.Chain.Fund(cmd.Context(), account, amount); err != nil {
				return err
			}
			return printBalance(cmd, account)
		},
	}
}

func newDevchainBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show an account balance (default: the current account)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := app.Ledger.Account()
			if len(args) == 1 {
				var err error
				if account, err = model.ParseAddress(args[0]); err != nil {
					return err
				}
			}
			return printBalance(cmd, account)
		},
	}
}

func printBalance(cmd *cobra.Command, account model.Address) error {
	wei, err := app.Ledger.Balance(cmd.Context(), account)
	if err != nil {
		return err
	}
	NewOutput(cfg.Output, cmd.OutOrStdout()).Print(BalanceResult{
		Account: account.Checksum(),
		Wei:     wei.String(),
		Ether:   ledger.FormatEther(wei),
	})
	return nil
}
