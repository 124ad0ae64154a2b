package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/rpslsgame/internal/config"
	"github.com/mcoot/rpslsgame/internal/factory"
)

const annotationNoApp = "no-app"

var (
	cfg    *Config
	app    *factory.App
	client *Client

	// openApp builds the application; tests replace it
	openApp = func(ctx context.Context, env *config.Config, logger *slog.Logger) (*factory.App, error) {
		if err := env.EnsureDataDir(); err != nil {
			return nil, err
		}
		fc := factory.ConfigFrom(env, logger)
		fc.Confirm = confirmPresence
		return factory.New(ctx, fc)
	}
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var (
		envErr  error
		dataDir string
	)
	cfg, envErr = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "rpsls",
		Short: "Commit-reveal Rock Paper Scissors Lizard Spock on a ledger",
		Long: `rpsls plays staked Rock Paper Scissors Lizard Spock games against a game
contract. Player 1 commits to a hashed move, player 2 plays in the clear, and
player 1 reveals to settle. Either side can claim the stake if the other stalls.

Openings are kept on this device until the reveal is confirmed, sealed under
a master key held by the platform authenticator when a vault is registered.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.Env.SetDataDir(dataDir)
			}
			if skipsApp(cmd) {
				client = NewClient(cfg.ServerURL, cfg.Token)
				return nil
			}

			level := cfg.Env.Level()
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			a, err := openApp(cmd.Context(), cfg.Env, logger)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			err := app.Close()
			app = nil
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	flags.StringVar(&cfg.Env.Account, "account", cfg.Env.Account, "Devchain account to act as (env: RPSLS_ACCOUNT)")
	flags.StringVar(&cfg.Env.Storage, "storage", cfg.Env.Storage, "Storage backend: sqlite, redis, memory (env: RPSLS_STORAGE)")
	flags.StringVar(&cfg.Env.Ledger, "ledger", cfg.Env.Ledger, "Ledger: devchain, ethereum (env: RPSLS_LEDGER)")
	flags.StringVar(&dataDir, "data-dir", cfg.Env.DataDir, "Data directory (env: RPSLS_DATA_DIR)")
	flags.StringVar(&cfg.PIN, "pin", "", "Vault PIN; prompted for when needed and omitted")

	// Add subcommands
	rootCmd.AddCommand(newGameCmd())
	rootCmd.AddCommand(newVaultCmd())
	rootCmd.AddCommand(newDevchainCmd())
	rootCmd.AddCommand(newRemoteCmd())

	return rootCmd
}

// skipsApp reports whether cmd or an ancestor runs without local state
func skipsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoApp] == "true" {
			return true
		}
	}
	return false
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		NewOutput(cfg.Output, os.Stdout).PrintError(root.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}

// requireChain returns the devchain or explains why it is unavailable
func requireChain() error {
	if app.Chain == nil {
		return fmt.Errorf("this command needs the devchain ledger (current: %s)", cfg.Env.Ledger)
	}
	return nil
}
