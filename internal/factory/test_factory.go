package factory

import (
	"context"
	"math/big"
	"time"

	"github.com/mcoot/rpslsgame/internal/dependencies/mocks"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/ledger/devchain"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/services/vault"
	"github.com/mcoot/rpslsgame/internal/storage/memory"
	"github.com/mcoot/rpslsgame/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock         *mocks.MockClock
	MockRandom        *mocks.MockRandom
	MockAuthenticator *mocks.MockAuthenticator
}

// TestChain is an in-memory devchain on a mock clock. Several test apps
// can share it to play against each other.
type TestChain struct {
	*devchain.Chain
	Clock *mocks.MockClock
}

// NewTestChain creates an empty TestChain
func NewTestChain() *TestChain {
	clk := mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return &TestChain{
		Chain: devchain.New(memory.New(), clk, testutil.NopLogger(), 0),
		Clock: clk,
	}
}

// NewTestApp creates an App acting as account on its own TestChain
func NewTestApp(account model.Address) *TestApp {
	return NewTestAppOn(NewTestChain(), account)
}

// NewTestAppOn creates an App with its own device storage on a shared chain
func NewTestAppOn(chain *TestChain, account model.Address) *TestApp {
	store := memory.New()
	rnd := mocks.NewMockRandom()
	auth := mocks.NewMockAuthenticator()
	vaultCfg := vault.Config{Iterations: 1000}

	app := newWithDependencies(store, chain.Client(account), auth, chain.Clock, rnd, vaultCfg, testutil.NopLogger())
	app.Chain = chain.Chain

	return &TestApp{
		App:               app,
		MockClock:         chain.Clock,
		MockRandom:        rnd,
		MockAuthenticator: auth,
	}
}

// Fund credits ether to the app's account
func (t *TestApp) Fund(ctx context.Context, ether string) error {
	amount, err := ledger.ParseEther(ether)
	if err != nil {
		return err
	}
	return t.Chain.Fund(ctx, t.Ledger.Account(), amount)
}

// Balance reads the app's account balance
func (t *TestApp) Balance(ctx context.Context) (*big.Int, error) {
	return t.Chain.Balance(ctx, t.Ledger.Account())
}
