package factory

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rpslsgame/internal/config"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/platform/authenticator"
	"github.com/mcoot/rpslsgame/internal/services/session"
	"github.com/mcoot/rpslsgame/internal/services/vault"
	"github.com/mcoot/rpslsgame/internal/testutil"
)

const (
	hostAccount  = model.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	guestAccount = model.Address("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

type IntegrationSuite struct {
	suite.Suite
	chain *TestChain
	host  *TestApp
	guest *TestApp
	ctx   context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.ctx = context.Background()
	s.chain = NewTestChain()
	s.host = NewTestAppOn(s.chain, hostAccount)
	s.guest = NewTestAppOn(s.chain, guestAccount)
	s.Require().NoError(s.host.Fund(s.ctx, "1"))
	s.Require().NoError(s.guest.Fund(s.ctx, "1"))
}

func (s *IntegrationSuite) ether(v string) *big.Int {
	n, err := ledger.ParseEther(v)
	s.Require().NoError(err)
	return n
}

// Test: Complete game flow with an encrypted opening
func (s *IntegrationSuite) TestEncryptedGameFlow() {
	// Step 1: Register the host's vault on the PIN path
	cred, err := s.host.Vault.Register(s.ctx, "2468")
	s.Require().NoError(err)
	s.NotEmpty(cred.ID)

	// Step 2: Create a game; the opening is sealed before deploy
	created, err := s.host.Sessions.Create(s.ctx, session.CreateRequest{
		Opponent: guestAccount,
		Move:     model.MoveLizard,
		Stake:    s.ether("0.25"),
		PIN:      "2468",
	})
	s.Require().NoError(err)
	s.True(created.Encrypted)

	// Step 3: The guest sees the game and plays
	view, err := s.guest.Sessions.Load(s.ctx, created.Address)
	s.Require().NoError(err)
	s.Equal(session.RolePlayer2, view.Role)
	s.Equal(model.PhaseCreated, view.Phase)
	s.Require().NoError(s.guest.Sessions.Play(s.ctx, created.Address, model.MovePaper))

	// Step 4: The host reveals with the PIN
	s.chain.Clock.Advance(30 * time.Second)
	result, err := s.host.Sessions.Reveal(s.ctx, created.Address, session.RevealRequest{PIN: "2468"})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer1, result.Winner)

	// Step 5: Funds moved and the opening is gone
	hostBalance, err := s.host.Balance(s.ctx)
	s.Require().NoError(err)
	s.Equal(s.ether("1.25"), hostBalance)
	guestBalance, err := s.guest.Balance(s.ctx)
	s.Require().NoError(err)
	s.Equal(s.ether("0.75"), guestBalance)

	pending, err := s.host.Sessions.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)
}

// Test: A tie refunds both players
func (s *IntegrationSuite) TestTieRefundsBoth() {
	created, err := s.host.Sessions.Create(s.ctx, session.CreateRequest{
		Opponent: guestAccount,
		Move:     model.MoveSpock,
		Stake:    s.ether("0.1"),
	})
	s.Require().NoError(err)
	s.False(created.Encrypted)

	s.Require().NoError(s.guest.Sessions.Play(s.ctx, created.Address, model.MoveSpock))
	result, err := s.host.Sessions.Reveal(s.ctx, created.Address, session.RevealRequest{})
	s.Require().NoError(err)
	s.Equal(model.WinnerTie, result.Winner)

	hostBalance, _ := s.host.Balance(s.ctx)
	guestBalance, _ := s.guest.Balance(s.ctx)
	s.Equal(s.ether("1"), hostBalance)
	s.Equal(s.ether("1"), guestBalance)
}

// Test: The host walks away after the guest plays
func (s *IntegrationSuite) TestAbandonedReveal() {
	created, err := s.host.Sessions.Create(s.ctx, session.CreateRequest{
		Opponent: guestAccount,
		Move:     model.MoveRock,
		Stake:    s.ether("0.5"),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.guest.Sessions.Play(s.ctx, created.Address, model.MoveScissors))

	s.chain.Clock.Advance(ledger.DefaultTimeout + 12*time.Second)
	claim, err := s.guest.Sessions.ClaimTimeout(s.ctx, created.Address, "")
	s.Require().NoError(err)
	s.Equal(model.TimeoutRoleJ1, claim.Role)

	guestBalance, _ := s.guest.Balance(s.ctx)
	s.Equal(s.ether("1.5"), guestBalance)

	_, err = s.host.Sessions.Reveal(s.ctx, created.Address, session.RevealRequest{})
	s.ErrorIs(err, model.ErrAlreadyResolved)
}

// Test: New wires a sqlite store and the software authenticator, and state
// survives reopening the database
func (s *IntegrationSuite) TestNewWithSQLitePersists() {
	dir := s.T().TempDir()
	cfg := Config{
		Logger:            testutil.NopLogger(),
		StorageType:       StorageTypeSQLite,
		SQLitePath:        filepath.Join(dir, "rpsls.db"),
		AuthenticatorMode: authenticator.ModePRF,
		DeviceSecretPath:  filepath.Join(dir, "device.key"),
		VaultConfig:       vault.Config{Iterations: 1000},
	}

	app, err := New(s.ctx, cfg)
	s.Require().NoError(err)
	s.Equal(DefaultDevAccount, app.Ledger.Account())
	s.Require().NoError(app.Chain.Fund(s.ctx, DefaultDevAccount, s.ether("1")))

	_, err = app.Vault.Register(s.ctx, "")
	s.Require().NoError(err)
	created, err := app.Sessions.Create(s.ctx, session.CreateRequest{
		Opponent: guestAccount,
		Move:     model.MovePaper,
		Stake:    s.ether("0.01"),
	})
	s.Require().NoError(err)
	s.True(created.Encrypted)
	s.Require().NoError(app.Close())

	reopened, err := New(s.ctx, cfg)
	s.Require().NoError(err)
	defer func() { _ = reopened.Close() }()

	status, err := reopened.Vault.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.KeyPathPRF, status.KeyPath)

	pending, err := reopened.Sessions.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(created.Address, pending[0].Address)

	view, err := reopened.Sessions.Load(s.ctx, created.Address)
	s.Require().NoError(err)
	s.Equal(model.PhaseCreated, view.Phase)
}

func (s *IntegrationSuite) TestNewRejectsUnknownBackends() {
	_, err := New(s.ctx, Config{StorageType: "etcd"})
	s.Error(err)

	_, err = New(s.ctx, Config{LedgerType: "bitcoin"})
	s.Error(err)

	_, err = New(s.ctx, Config{StorageType: StorageTypeRedis})
	s.Error(err)

	_, err = New(s.ctx, Config{Account: "alice"})
	s.ErrorIs(err, model.ErrInvalidAddress)

	_, err = New(s.ctx, Config{AuthenticatorMode: "fingerprint"})
	s.Error(err)
}

func (s *IntegrationSuite) TestConfigFrom() {
	s.T().Setenv("RPSLS_DATA_DIR", s.T().TempDir())
	s.T().Setenv("RPSLS_STORAGE", "redis")
	s.T().Setenv("RPSLS_REDIS_NAMESPACE", "device-a")
	s.T().Setenv("RPSLS_AUTHENTICATOR", "presence")
	env, err := config.Load()
	s.Require().NoError(err)

	cfg := ConfigFrom(env, nil)
	s.Equal(StorageTypeRedis, cfg.StorageType)
	s.Require().NotNil(cfg.RedisConfig)
	s.Equal("device-a", cfg.RedisConfig.Namespace)
	s.Equal(authenticator.ModePresence, cfg.AuthenticatorMode)
	s.Equal(vault.DefaultIterations, cfg.VaultConfig.Iterations)
	s.Equal(LedgerTypeDevchain, cfg.LedgerType)
}
