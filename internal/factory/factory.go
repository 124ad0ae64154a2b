package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/rpslsgame/internal/config"
	"github.com/mcoot/rpslsgame/internal/dependencies/clock"
	"github.com/mcoot/rpslsgame/internal/dependencies/random"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/ledger/devchain"
	"github.com/mcoot/rpslsgame/internal/ledger/ethereum"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/platform/authenticator"
	"github.com/mcoot/rpslsgame/internal/services/session"
	"github.com/mcoot/rpslsgame/internal/services/vault"
	"github.com/mcoot/rpslsgame/internal/storage"
	"github.com/mcoot/rpslsgame/internal/storage/memory"
	redisstorage "github.com/mcoot/rpslsgame/internal/storage/redis"
	"github.com/mcoot/rpslsgame/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// Ledger type constants
const (
	LedgerTypeDevchain = "devchain"
	LedgerTypeEthereum = "ethereum"
)

// DefaultDevAccount is the devchain account used when none is configured
const DefaultDevAccount = model.Address("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")

// App contains all wired application components
type App struct {
	// Storage
	Store   storage.Store
	Records *storage.Records

	// External dependencies
	Clock         clock.Clock
	Random        random.Random
	Ledger        ledger.Ledger
	Authenticator authenticator.Authenticator

	// Chain is set only for the devchain ledger
	Chain *devchain.Chain

	// Services
	Vault    *vault.Vault
	Sessions *session.Manager

	Logger *slog.Logger
}

// Close releases the storage backend
func (a *App) Close() error {
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger

	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config

	// LedgerType selects the ledger ("devchain" or "ethereum")
	// If empty, defaults to "devchain"
	LedgerType string
	// Account is the devchain account to act as
	Account model.Address
	// EthereumConfig holds node settings (required if LedgerType is "ethereum")
	EthereumConfig *ethereum.Config

	// AuthenticatorMode selects the software authenticator behaviour
	// If empty, defaults to "prf"
	AuthenticatorMode authenticator.Mode
	// DeviceSecretPath is where the software authenticator keeps its key
	DeviceSecretPath string
	// Confirm approves authenticator ceremonies (optional)
	Confirm authenticator.ConfirmFunc

	// VaultConfig tunes key derivation (optional)
	// If zero value, defaults to vault.DefaultConfig()
	VaultConfig vault.Config
}

// ConfigFrom maps environment settings onto a factory Config
func ConfigFrom(c *config.Config, logger *slog.Logger) Config {
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = c.RedisURL
	redisCfg.Namespace = c.RedisNamespace
	redisCfg.ResultTTL = c.ResultTTL

	return Config{
		Logger:      logger,
		StorageType: c.Storage,
		SQLitePath:  c.SQLitePath,
		RedisConfig: &redisCfg,
		LedgerType:  c.Ledger,
		Account:     model.Address(c.Account),
		EthereumConfig: &ethereum.Config{
			RPCURL:         c.RPCURL,
			PrivateKey:     c.PrivateKey,
			ConfirmTimeout: c.ConfirmTimeout,
		},
		AuthenticatorMode: authenticator.Mode(c.Authenticator),
		DeviceSecretPath:  c.DeviceSecretPath,
		VaultConfig: vault.Config{
			Iterations:         c.KDFIterations,
			PinAttemptInterval: c.PinAttemptInterval,
			PinAttemptBurst:    c.PinAttemptBurst,
		},
	}
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	var (
		l     ledger.Ledger
		chain *devchain.Chain
	)
	switch cfg.LedgerType {
	case "", LedgerTypeDevchain:
		account := DefaultDevAccount
		if cfg.Account != "" {
			account, err = model.ParseAddress(string(cfg.Account))
			if err != nil {
				closeQuietly(store)
				return nil, fmt.Errorf("devchain account: %w", err)
			}
		}
		chain = devchain.New(store, clk, logger, 0)
		l = chain.Client(account)
	case LedgerTypeEthereum:
		if cfg.EthereumConfig == nil {
			closeQuietly(store)
			return nil, errors.New("EthereumConfig required when LedgerType is ethereum")
		}
		client, err := ethereum.Dial(ctx, *cfg.EthereumConfig, logger)
		if err != nil {
			closeQuietly(store)
			return nil, err
		}
		l = client
	default:
		closeQuietly(store)
		return nil, errors.New("invalid LedgerType: must be 'devchain' or 'ethereum'")
	}

	mode := cfg.AuthenticatorMode
	if mode == "" {
		mode = authenticator.ModePRF
	}
	auth, err := authenticator.NewSoftware(mode, cfg.DeviceSecretPath, rnd, cfg.Confirm)
	if err != nil {
		closeQuietly(store)
		return nil, err
	}

	// Use default vault config if not provided
	vaultCfg := cfg.VaultConfig
	if vaultCfg == (vault.Config{}) {
		vaultCfg = vault.DefaultConfig()
	}

	app := newWithDependencies(store, l, auth, clk, rnd, vaultCfg, logger)
	app.Chain = chain
	return app, nil
}

func openStore(cfg Config) (storage.Store, error) {
	switch cfg.StorageType {
	case "", StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		return sqlite.Open(cfg.SQLitePath)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

func closeQuietly(store storage.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Store,
	l ledger.Ledger,
	auth authenticator.Authenticator,
	clk clock.Clock,
	rnd random.Random,
	vaultCfg vault.Config,
	logger *slog.Logger,
) *App {
	records := storage.NewRecords(store)
	v := vault.New(records, auth, rnd, clk, logger, vaultCfg)
	sessions := session.NewManager(l, v, records, clk, rnd, logger)

	return &App{
		Store:         store,
		Records:       records,
		Clock:         clk,
		Random:        rnd,
		Ledger:        l,
		Authenticator: auth,
		Vault:         v,
		Sessions:      sessions,
		Logger:        logger,
	}
}
