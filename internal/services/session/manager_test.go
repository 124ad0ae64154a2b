package session

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rpslsgame/internal/dependencies/mocks"
	"github.com/mcoot/rpslsgame/internal/dependencies/random"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/ledger/devchain"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/vault"
	"github.com/mcoot/rpslsgame/internal/storage"
	"github.com/mcoot/rpslsgame/internal/storage/memory"
	redisstore "github.com/mcoot/rpslsgame/internal/storage/redis"
	"github.com/mcoot/rpslsgame/internal/testutil"
)

const (
	alice = model.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	bob   = model.Address("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

// countingLedger records timeout submissions and can misreport the win view
type countingLedger struct {
	ledger.Ledger
	timeoutCalls int
	solveCalls   int
	invertWins   bool
}

func (l *countingLedger) J1Timeout(ctx context.Context, game model.Address) error {
	l.timeoutCalls++
	return l.Ledger.J1Timeout(ctx, game)
}

func (l *countingLedger) J2Timeout(ctx context.Context, game model.Address) error {
	l.timeoutCalls++
	return l.Ledger.J2Timeout(ctx, game)
}

func (l *countingLedger) Solve(ctx context.Context, game model.Address, move model.Move, salt model.Salt) error {
	l.solveCalls++
	return l.Ledger.Solve(ctx, game, move, salt)
}

func (l *countingLedger) Wins(ctx context.Context, game model.Address, a, b model.Move) (bool, error) {
	w, err := l.Ledger.Wins(ctx, game, a, b)
	if l.invertWins {
		return !w && a != b, err
	}
	return w, err
}

// failingStore rejects writes of pending openings
type failingStore struct {
	storage.Store
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, storage.SecretPrefix) {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *mocks.MockClock
	chain   *devchain.Chain
	ledger1 *countingLedger
	store1  *memory.Storage
	records *storage.Records
	p1      *Manager
	p2      *Manager
	stake   *big.Int
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC))
	s.chain = devchain.New(memory.New(), s.clock, testutil.NopLogger(), 0)

	stake, err := ledger.ParseEther("0.01")
	s.Require().NoError(err)
	s.stake = stake
	funds, _ := ledger.ParseEther("1")
	s.Require().NoError(s.chain.Fund(s.ctx, alice, funds))
	s.Require().NoError(s.chain.Fund(s.ctx, bob, funds))

	s.ledger1 = &countingLedger{Ledger: s.chain.Client(alice)}
	s.store1 = memory.New()
	s.records = storage.NewRecords(s.store1)
	s.p1 = NewManager(s.ledger1, nil, s.records, s.clock, mocks.NewMockRandom(), testutil.NopLogger())
	s.p2 = NewManager(s.chain.Client(bob), nil, storage.NewRecords(memory.New()), s.clock, mocks.NewMockRandom(), testutil.NopLogger())
}

func (s *ManagerSuite) create(move model.Move) model.Address {
	res, err := s.p1.Create(s.ctx, CreateRequest{Opponent: bob, Move: move, Stake: s.stake})
	s.Require().NoError(err)
	return res.Address
}

func (s *ManagerSuite) balance(a model.Address) *big.Int {
	b, err := s.chain.Balance(s.ctx, a)
	s.Require().NoError(err)
	return b
}

func (s *ManagerSuite) withVault(pin string) *vault.Vault {
	v := vault.New(s.records, mocks.NewMockAuthenticator(), random.New(), s.clock, testutil.NopLogger(), vault.Config{Iterations: 1000})
	_, err := v.Register(s.ctx, pin)
	s.Require().NoError(err)
	s.p1 = NewManager(s.ledger1, v, s.records, s.clock, mocks.NewMockRandom(), testutil.NopLogger())
	return v
}

// End-to-end

func (s *ManagerSuite) TestRockAgainstSpock() {
	game := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveSpock))

	result, err := s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer2, result.Winner)
	s.Equal(model.MoveRock, result.Move1)
	s.Equal(model.MoveSpock, result.Move2)

	view, err := s.p1.Load(s.ctx, game)
	s.Require().NoError(err)
	s.Equal(0, view.Session.Stake.Sign())
	s.Equal(model.PhaseResolved, view.Phase)
	s.False(view.HasSecret)
	s.Nil(view.Timeout)

	_, ok, err := s.records.GetSecret(s.ctx, game)
	s.Require().NoError(err)
	s.False(ok)

	cached, ok, err := s.p1.Result(s.ctx, game)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(result, cached)

	oneEther, _ := ledger.ParseEther("1")
	s.Equal(new(big.Int).Add(oneEther, s.stake), s.balance(bob))
	s.Equal(new(big.Int).Sub(oneEther, s.stake), s.balance(alice))
}

func (s *ManagerSuite) TestJ2TimeoutAfterMargin() {
	game := s.create(model.MovePaper)

	s.clock.Advance(311 * time.Second)
	_, err := s.p1.ClaimTimeout(s.ctx, game, model.TimeoutRoleJ2)
	var pending *model.TimeoutPendingError
	s.Require().ErrorAs(err, &pending)
	s.Equal(time.Second, pending.Remaining)
	s.ErrorIs(err, model.ErrTimeoutNotElapsed)
	s.Equal(0, s.ledger1.timeoutCalls)

	s.clock.Advance(time.Second)
	claim, err := s.p1.ClaimTimeout(s.ctx, game, model.TimeoutRoleJ2)
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer1, claim.Result.Winner)

	view, err := s.p1.Load(s.ctx, game)
	s.Require().NoError(err)
	s.Equal(model.PhaseJ2TimedOut, view.Phase)
	oneEther, _ := ledger.ParseEther("1")
	s.Equal(oneEther, s.balance(alice))

	_, kept, err := s.records.GetSecret(s.ctx, game)
	s.Require().NoError(err)
	s.True(kept)
	pendingGames, err := s.p1.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pendingGames)
}

func (s *ManagerSuite) TestJ1TimeoutInferredForPlayer2() {
	game := s.create(model.MoveScissors)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveRock))

	s.clock.Advance(200 * time.Second)
	_, err := s.p2.ClaimTimeout(s.ctx, game, "")
	var pending *model.TimeoutPendingError
	s.Require().ErrorAs(err, &pending)
	s.Equal(model.TimeoutRoleJ1, pending.Role)
	s.Equal(112*time.Second, pending.Remaining)

	s.clock.Advance(112 * time.Second)
	claim, err := s.p2.ClaimTimeout(s.ctx, game, "")
	s.Require().NoError(err)
	s.Equal(model.TimeoutRoleJ1, claim.Role)
	s.Equal(model.WinnerPlayer2, claim.Result.Winner)

	view, err := s.p2.Load(s.ctx, game)
	s.Require().NoError(err)
	s.Equal(model.PhaseJ1TimedOut, view.Phase)

	_, ok, _ := s.records.GetSecret(s.ctx, game)
	s.True(ok)
}

// Validation

func (s *ManagerSuite) TestCreateValidation() {
	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"malformed opponent", CreateRequest{Opponent: "0x1234", Move: model.MoveRock, Stake: s.stake}, model.ErrInvalidAddress},
		{"zero opponent", CreateRequest{Opponent: "0x0000000000000000000000000000000000000000", Move: model.MoveRock, Stake: s.stake}, model.ErrInvalidAddress},
		{"zero stake", CreateRequest{Opponent: bob, Move: model.MoveRock, Stake: big.NewInt(0)}, model.ErrInvalidStake},
		{"missing stake", CreateRequest{Opponent: bob, Move: model.MoveRock}, model.ErrInvalidStake},
		{"unprefixed address", CreateRequest{Opponent: model.Address(strings.ToUpper(string(alice[2:]))), Move: model.MoveRock, Stake: s.stake}, model.ErrInvalidAddress},
		{"self play checksummed", CreateRequest{Opponent: model.Address(alice.Checksum()), Move: model.MoveRock, Stake: s.stake}, model.ErrSelfPlay},
		{"no move", CreateRequest{Opponent: bob, Move: model.MoveNone, Stake: s.stake}, model.ErrInvalidMove},
	}
	before := s.balance(alice)
	for _, tt := range tests {
		_, err := s.p1.Create(s.ctx, tt.req)
		s.ErrorIs(err, tt.want, tt.name)
		s.ErrorIs(err, model.ErrValidation, tt.name)
	}
	s.Equal(before, s.balance(alice))
}

func (s *ManagerSuite) TestUnsavedOpeningIsReported() {
	p1 := NewManager(s.ledger1, nil, storage.NewRecords(&failingStore{Store: memory.New()}), s.clock, mocks.NewMockRandom(), testutil.NopLogger())

	_, err := p1.Create(s.ctx, CreateRequest{Opponent: bob, Move: model.MoveLizard, Stake: s.stake})
	var unsaved *model.UnsavedSecretError
	s.Require().ErrorAs(err, &unsaved)
	s.Equal(model.MoveLizard, unsaved.Move)

	s.Require().NoError(s.p2.Play(s.ctx, unsaved.Address, model.MovePaper))
	salt := unsaved.Salt
	result, err := p1.Reveal(s.ctx, unsaved.Address, RevealRequest{Move: unsaved.Move, Salt: &salt})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer1, result.Winner)
}

// Reveal guards

func (s *ManagerSuite) TestRevealBeforeOpponentPlayed() {
	game := s.create(model.MoveRock)

	_, err := s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.ErrorIs(err, model.ErrOpponentNotPlayed)
	s.ErrorIs(err, model.ErrState)
	s.Equal(0, s.ledger1.solveCalls)

	_, ok, _ := s.records.GetSecret(s.ctx, game)
	s.True(ok)
}

func (s *ManagerSuite) TestRevealWithoutStoredOpening() {
	game := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MovePaper))
	stored, _, err := s.records.GetSecret(s.ctx, game)
	s.Require().NoError(err)
	s.Require().NoError(s.records.DeleteSecret(s.ctx, game))

	_, err = s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.ErrorIs(err, model.ErrNoStoredSecret)

	result, err := s.p1.Reveal(s.ctx, game, RevealRequest{Move: stored.Move, Salt: &stored.Salt})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer2, result.Winner)
}

func (s *ManagerSuite) TestWrongManualOpeningIsNotSubmitted() {
	game := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MovePaper))

	var salt model.Salt
	_, err := s.p1.Reveal(s.ctx, game, RevealRequest{Move: model.MoveRock, Salt: &salt})
	s.ErrorIs(err, model.ErrCommitmentMismatch)
	s.Equal(0, s.ledger1.solveCalls)

	_, ok, _ := s.records.GetSecret(s.ctx, game)
	s.True(ok)
}

func (s *ManagerSuite) TestRevealByPlayer2Rejected() {
	game := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MovePaper))

	_, err := s.p2.Reveal(s.ctx, game, RevealRequest{})
	s.ErrorIs(err, model.ErrNotPlayer1)
}

func (s *ManagerSuite) TestResolvedGameRejectsEverythingLocally() {
	game := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveScissors))
	_, err := s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.Require().NoError(err)
	s.clock.Advance(time.Hour)

	_, err = s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.ErrorIs(err, model.ErrAlreadyResolved)
	_, err = s.p1.ClaimTimeout(s.ctx, game, "")
	s.ErrorIs(err, model.ErrAlreadyResolved)
	s.ErrorIs(s.p2.Play(s.ctx, game, model.MoveRock), model.ErrAlreadyResolved)
	s.Equal(1, s.ledger1.solveCalls)
	s.Equal(0, s.ledger1.timeoutCalls)
}

func (s *ManagerSuite) TestLedgerOutcomeWinsDisagreement() {
	s.ledger1.invertWins = true
	game := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveSpock))

	result, err := s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer1, result.Winner)
}

// Timeout roles

func (s *ManagerSuite) TestTimeoutRoleMismatch() {
	game := s.create(model.MoveRock)
	s.clock.Advance(time.Hour)

	_, err := s.p1.ClaimTimeout(s.ctx, game, model.TimeoutRoleJ1)
	s.ErrorIs(err, model.ErrOpponentNotPlayed)

	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveRock))
	_, err = s.p1.ClaimTimeout(s.ctx, game, model.TimeoutRoleJ2)
	s.ErrorIs(err, model.ErrOpponentPlayed)
	s.Equal(0, s.ledger1.timeoutCalls)
}

// Play

func (s *ManagerSuite) TestPlayGuards() {
	game := s.create(model.MoveRock)

	s.ErrorIs(s.p1.Play(s.ctx, game, model.MovePaper), model.ErrNotPlayer2)
	s.ErrorIs(s.p2.Play(s.ctx, game, model.MoveNone), model.ErrInvalidMove)
	s.Require().NoError(s.p2.Play(s.ctx, game, model.MovePaper))
	s.ErrorIs(s.p2.Play(s.ctx, game, model.MovePaper), model.ErrOpponentPlayed)
}

func (s *ManagerSuite) TestUnknownGame() {
	_, err := s.p1.Load(s.ctx, "0x000000000000000000000000000000000000dead")
	s.ErrorIs(err, model.ErrGameNotFound)

	_, err = s.p1.Load(s.ctx, "not-an-address")
	s.ErrorIs(err, model.ErrInvalidAddress)
}

// Vault integration

func (s *ManagerSuite) TestEncryptedOpening() {
	s.withVault("1234")

	res, err := s.p1.Create(s.ctx, CreateRequest{Opponent: bob, Move: model.MoveRock, Stake: s.stake, PIN: "1234"})
	s.Require().NoError(err)
	s.True(res.Encrypted)

	secret, ok, err := s.records.GetSecret(s.ctx, res.Address)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(secret.IsEncrypted())
	s.Equal(model.MoveNone, secret.Move)

	s.Require().NoError(s.p2.Play(s.ctx, res.Address, model.MoveSpock))

	_, err = s.p1.Reveal(s.ctx, res.Address, RevealRequest{PIN: "0000"})
	s.ErrorIs(err, model.ErrDecryptionFailed)
	s.Equal(0, s.ledger1.solveCalls)
	_, ok, _ = s.records.GetSecret(s.ctx, res.Address)
	s.True(ok)

	result, err := s.p1.Reveal(s.ctx, res.Address, RevealRequest{PIN: "1234"})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer2, result.Winner)
}

func (s *ManagerSuite) TestVaultFailureBlocksDeploy() {
	s.withVault("1234")
	before := s.balance(alice)

	_, err := s.p1.Create(s.ctx, CreateRequest{Opponent: bob, Move: model.MoveRock, Stake: s.stake})
	s.ErrorIs(err, model.ErrPinRequired)
	s.ErrorIs(err, model.ErrVault)
	s.Equal(before, s.balance(alice))
}

func (s *ManagerSuite) TestEncryptedOpeningWithoutVault() {
	v := s.withVault("1234")
	res, err := s.p1.Create(s.ctx, CreateRequest{Opponent: bob, Move: model.MoveRock, Stake: s.stake, PIN: "1234"})
	s.Require().NoError(err)
	s.Require().NoError(s.p2.Play(s.ctx, res.Address, model.MovePaper))
	s.Require().NoError(v.Revoke(s.ctx))

	_, err = s.p1.Reveal(s.ctx, res.Address, RevealRequest{PIN: "1234"})
	s.ErrorIs(err, model.ErrAuthenticatorUnavailable)
	_, ok, _ := s.records.GetSecret(s.ctx, res.Address)
	s.True(ok)
}

// Views

func (s *ManagerSuite) TestLoadView() {
	game := s.create(model.MoveRock)
	s.clock.Advance(13 * time.Second)

	view, err := s.p1.Load(s.ctx, game)
	s.Require().NoError(err)
	s.Equal(model.PhaseCreated, view.Phase)
	s.Equal(RolePlayer1, view.Role)
	s.Equal(model.TimeoutRoleJ2, view.ClaimRole)
	s.True(view.HasSecret)
	s.False(view.Encrypted)
	s.Require().NotNil(view.Timeout)
	s.Equal("4m 59s", view.Timeout.Describe())

	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveLizard))
	other, err := s.p2.Load(s.ctx, game)
	s.Require().NoError(err)
	s.Equal(model.PhaseOpponentPlayed, other.Phase)
	s.Equal(RolePlayer2, other.Role)
	s.Equal(model.TimeoutRoleJ1, other.ClaimRole)
	s.False(other.HasSecret)
}

func (s *ManagerSuite) TestMirrorDroppedWhenResolved() {
	game := s.create(model.MoveRock)
	_, err := s.p1.Load(s.ctx, game)
	s.Require().NoError(err)

	seen, ok := s.p1.lastSeen(game)
	s.Require().True(ok)
	s.Equal(model.MoveNone, seen.OpponentMove)

	s.Require().NoError(s.p2.Play(s.ctx, game, model.MoveRock))
	_, err = s.p1.Reveal(s.ctx, game, RevealRequest{})
	s.Require().NoError(err)

	_, ok = s.p1.lastSeen(game)
	s.False(ok)
}

func (s *ManagerSuite) TestChecksumAddressClearsMirror() {
	revealed := s.create(model.MoveRock)
	s.Require().NoError(s.p2.Play(s.ctx, revealed, model.MoveLizard))
	_, err := s.p1.Load(s.ctx, revealed)
	s.Require().NoError(err)

	result, err := s.p1.Reveal(s.ctx, model.Address(revealed.Checksum()), RevealRequest{})
	s.Require().NoError(err)
	s.Equal(model.WinnerPlayer1, result.Winner)
	_, ok := s.p1.lastSeen(revealed)
	s.False(ok)

	claimed := s.create(model.MovePaper)
	_, err = s.p1.Load(s.ctx, claimed)
	s.Require().NoError(err)
	s.clock.Advance(312 * time.Second)
	_, err = s.p1.ClaimTimeout(s.ctx, model.Address(claimed.Checksum()), model.TimeoutRoleJ2)
	s.Require().NoError(err)
	_, ok = s.p1.lastSeen(claimed)
	s.False(ok)

	s.Empty(s.p1.mirror)
	_, ok, err = s.p1.Result(s.ctx, claimed)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ManagerSuite) TestTimedOutGameStaysClosedAfterResultExpires() {
	mini := miniredis.RunT(s.T())
	cfg := redisstore.DefaultConfig()
	cfg.Namespace = "device"
	cfg.ResultTTL = time.Hour
	store := redisstore.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mini.Addr()}), cfg)
	s.T().Cleanup(func() { _ = store.Close() })

	records := storage.NewRecords(store)
	p1 := NewManager(s.chain.Client(alice), nil, records, s.clock, mocks.NewMockRandom(), testutil.NopLogger())

	res, err := p1.Create(s.ctx, CreateRequest{Opponent: bob, Move: model.MoveScissors, Stake: s.stake})
	s.Require().NoError(err)
	s.clock.Advance(312 * time.Second)
	_, err = p1.ClaimTimeout(s.ctx, res.Address, model.TimeoutRoleJ2)
	s.Require().NoError(err)

	pending, err := p1.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	mini.FastForward(2 * time.Hour)
	_, ok, err := records.GetResult(s.ctx, res.Address)
	s.Require().NoError(err)
	s.False(ok, "result should have expired")

	secret, ok, err := records.GetSecret(s.ctx, res.Address)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(secret.Closed())
	s.True(s.clock.Now().Equal(secret.ClosedAt))

	pending, err = p1.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *ManagerSuite) TestListPending() {
	first := s.create(model.MoveRock)
	second := s.create(model.MovePaper)

	pending, err := s.p1.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 2)
	got := map[model.Address]bool{}
	for _, p := range pending {
		got[p.Address] = true
		s.False(p.Encrypted)
	}
	s.True(got[first])
	s.True(got[second])
	for _, p := range pending {
		s.Nil(p.LastSeen)
	}

	_, err = s.p1.Load(s.ctx, first)
	s.Require().NoError(err)
	pending, err = s.p1.ListPending(s.ctx)
	s.Require().NoError(err)
	for _, p := range pending {
		if p.Address == first {
			s.Require().NotNil(p.LastSeen)
			s.Equal(bob, p.LastSeen.Player2)
			s.Equal(0, p.LastSeen.Stake.Cmp(s.stake))
		} else {
			s.Nil(p.LastSeen)
		}
	}
}
