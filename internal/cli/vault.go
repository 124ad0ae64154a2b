package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mcoot/rpslsgame/internal/model"
)

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the authenticator-backed secret vault",
	}

	cmd.AddCommand(newVaultRegisterCmd())
	cmd.AddCommand(newVaultStatusCmd())
	cmd.AddCommand(newVaultRevokeCmd())

	return cmd
}

func newVaultRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register a credential and create the master key",
		Long: `Register creates a platform authenticator credential and a fresh master
key. With PRF support the key is wrapped under the authenticator's PRF
output; otherwise a PIN is required and combined with the credential id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, err := app.Vault.Register(ctx, cfg.PIN)
			if errors.Is(err, model.ErrPinRequired) && cfg.PIN == "" {
				pin, perr := newPIN()
				if perr != nil {
					return err
				}
				_, err = app.Vault.Register(ctx, pin)
			}
			if err != nil {
				return err
			}

			status, err := app.Vault.Status(ctx)
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(status)
			return nil
		},
	}
}

func newVaultStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a vault is registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := app.Vault.Status(cmd.Context())
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(status)
			return nil
		},
	}
}

func newVaultRevokeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Delete the credential and master key",
		Long: `Revoke deletes the registered credential and wrapped master key.
Openings sealed under the old key can no longer be decrypted, so revoke
refuses while any are pending unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !force {
				pending, err := app.Sessions.ListPending(ctx)
				if err != nil {
					return err
				}
				for _, p := range pending {
					if p.Encrypted {
						return errors.New("encrypted openings are pending; reveal them first or pass --force")
					}
				}
			}

			if err := app.Vault.Revoke(ctx); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Vault revoked")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Revoke even if encrypted openings are pending")

	return cmd
}
