package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/rpslsgame/internal/api/response"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "remote",
		Short:       "Query a running status server",
		Annotations: map[string]string{annotationNoApp: "true"},
	}

	cmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Status server URL")
	cmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Env.APIToken, "Bearer token (env: RPSLS_API_TOKEN)")

	cmd.AddCommand(newRemoteHealthCmd())
	cmd.AddCommand(newRemoteGamesCmd())
	cmd.AddCommand(newRemoteGameCmd())

	return cmd
}

func newRemoteHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Health
			if err := client.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRemoteGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List the server device's pending games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.PendingGames
			if err := client.Get(cmd.Context(), "/api/v1/games", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRemoteGameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "game <address>",
		Short: "Show one game as the server sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Game
			if err := client.Get(cmd.Context(), GamePath(args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
