// Package devchain simulates the game contract on a local, single-node chain.
//
// Contract state, balances and account nonces live in the configured
// key-value store, so games survive across CLI invocations without a node.
// Block timestamps come from the injected clock in whole seconds.
package devchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mcoot/rpslsgame/internal/dependencies/clock"
	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/storage"
)

const (
	contractPrefix = "rpsls:devchain:contract:"
	balancePrefix  = "rpsls:devchain:balance:"
	noncePrefix    = "rpsls:devchain:nonce:"
)

// contract is the persisted storage of one game contract
type contract struct {
	J1         model.Address `json:"j1"`
	J2         model.Address `json:"j2"`
	C1Hash     common.Hash   `json:"c1_hash"`
	C2         model.Move    `json:"c2"`
	Stake      *big.Int      `json:"stake"`
	LastAction int64         `json:"last_action"`
	Timeout    int64         `json:"timeout"`
}

// Chain hosts every simulated game contract
type Chain struct {
	mu      sync.Mutex
	store   storage.Store
	clock   clock.Clock
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a Chain over store. Contracts deployed by it use timeout as
// their TIMEOUT constant; zero selects ledger.DefaultTimeout.
func New(store storage.Store, clock clock.Clock, logger *slog.Logger, timeout time.Duration) *Chain {
	if timeout <= 0 {
		timeout = ledger.DefaultTimeout
	}
	return &Chain{
		store:   store,
		clock:   clock,
		logger:  logger,
		timeout: timeout,
	}
}

// Client returns a Ledger that sends calls from account
func (c *Chain) Client(account model.Address) *Client {
	return &Client{chain: c, account: account}
}

// Fund credits amount wei to account
func (c *Chain) Fund(ctx context.Context, account model.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return model.ErrInvalidStake
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credit(ctx, account, amount)
}

// Balance returns the balance of account in wei
func (c *Chain) Balance(ctx context.Context, account model.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance(ctx, account)
}

func (c *Chain) now() int64 {
	return c.clock.Now().Unix()
}

func revert(reason string) error {
	return fmt.Errorf("%w: %s", model.ErrLedgerRejected, reason)
}

func (c *Chain) deploy(ctx context.Context, sender model.Address, commitment model.Commitment, opponent model.Address, value *big.Int) (model.Address, error) {
	if value == nil || value.Sign() < 0 {
		return "", revert("invalid value")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.debit(ctx, sender, value); err != nil {
		return "", err
	}
	nonce, err := c.nextNonce(ctx, sender)
	if err != nil {
		return "", err
	}
	addr := model.AddressFromCommon(crypto.CreateAddress(sender.Common(), nonce))

	k := &contract{
		J1:         sender,
		J2:         opponent,
		C1Hash:     common.Hash(commitment),
		C2:         model.MoveNone,
		Stake:      new(big.Int).Set(value),
		LastAction: c.now(),
		Timeout:    int64(c.timeout / time.Second),
	}
	if err := c.saveContract(ctx, addr, k); err != nil {
		return "", err
	}
	c.logger.Debug("devchain contract deployed", "address", addr, "j1", sender, "j2", opponent, "stake", value)
	return addr, nil
}

func (c *Chain) play(ctx context.Context, sender, game model.Address, move model.Move, value *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := c.loadContract(ctx, game)
	if err != nil {
		return err
	}
	switch {
	case k.C2 != model.MoveNone:
		return revert("player 2 has already played")
	case !move.Valid():
		return revert("invalid move")
	case value == nil || value.Cmp(k.Stake) != 0:
		return revert("value must equal the stake")
	case sender != k.J2:
		return revert("only player 2 can play")
	case k.Stake.Sign() == 0:
		return revert("game is closed")
	}
	if err := c.debit(ctx, sender, value); err != nil {
		return err
	}
	k.C2 = move
	k.LastAction = c.now()
	return c.saveContract(ctx, game, k)
}

func (c *Chain) solve(ctx context.Context, sender, game model.Address, move model.Move, salt model.Salt) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := c.loadContract(ctx, game)
	if err != nil {
		return err
	}
	switch {
	case !move.Valid():
		return revert("invalid move")
	case k.C2 == model.MoveNone:
		return revert("player 2 has not played")
	case sender != k.J1:
		return revert("only player 1 can solve")
	case k.Stake.Sign() == 0:
		return revert("game is closed")
	}
	preimage := append([]byte{byte(move)}, salt[:]...)
	if crypto.Keccak256Hash(preimage) != k.C1Hash {
		return revert("commitment does not match")
	}

	pot := new(big.Int).Mul(k.Stake, big.NewInt(2))
	switch {
	case win(move, k.C2):
		err = c.credit(ctx, k.J1, pot)
	case win(k.C2, move):
		err = c.credit(ctx, k.J2, pot)
	default:
		if err = c.credit(ctx, k.J1, k.Stake); err == nil {
			err = c.credit(ctx, k.J2, k.Stake)
		}
	}
	if err != nil {
		return err
	}
	k.Stake = new(big.Int)
	return c.saveContract(ctx, game, k)
}

func (c *Chain) j1Timeout(ctx context.Context, game model.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := c.loadContract(ctx, game)
	if err != nil {
		return err
	}
	switch {
	case k.C2 == model.MoveNone:
		return revert("player 2 has not played")
	case k.Stake.Sign() == 0:
		return revert("game is closed")
	case c.now() <= k.LastAction+k.Timeout:
		return fmt.Errorf("%w: j1Timeout", model.ErrTimeoutNotElapsed)
	}
	if err := c.credit(ctx, k.J2, new(big.Int).Mul(k.Stake, big.NewInt(2))); err != nil {
		return err
	}
	k.Stake = new(big.Int)
	return c.saveContract(ctx, game, k)
}

func (c *Chain) j2Timeout(ctx context.Context, game model.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := c.loadContract(ctx, game)
	if err != nil {
		return err
	}
	switch {
	case k.C2 != model.MoveNone:
		return revert("player 2 has already played")
	case k.Stake.Sign() == 0:
		return revert("game is closed")
	case c.now() <= k.LastAction+k.Timeout:
		return fmt.Errorf("%w: j2Timeout", model.ErrTimeoutNotElapsed)
	}
	if err := c.credit(ctx, k.J1, k.Stake); err != nil {
		return err
	}
	k.Stake = new(big.Int)
	return c.saveContract(ctx, game, k)
}

func (c *Chain) state(ctx context.Context, game model.Address) (*model.GameSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := c.loadContract(ctx, game)
	if err != nil {
		return nil, err
	}
	return &model.GameSession{
		Address:       game,
		Player1:       k.J1,
		Player2:       k.J2,
		Commitment:    model.Commitment(k.C1Hash),
		OpponentMove:  k.C2,
		Stake:         new(big.Int).Set(k.Stake),
		LastAction:    time.Unix(k.LastAction, 0).UTC(),
		TimeoutWindow: time.Duration(k.Timeout) * time.Second,
	}, nil
}

// win mirrors the contract's parity rule: moves of equal parity are won by
// the lower one, moves of different parity by the higher one
func win(a, b model.Move) bool {
	switch {
	case a == b, a == model.MoveNone:
		return false
	case a%2 == b%2:
		return a < b
	default:
		return a > b
	}
}

// Storage helpers. Callers hold c.mu.

func (c *Chain) loadContract(ctx context.Context, game model.Address) (*contract, error) {
	data, err := c.store.Get(ctx, contractPrefix+strings.ToLower(string(game)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrGameNotFound, game)
	}
	if err != nil {
		return nil, err
	}
	var k contract
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("decode contract %s: %w", game, err)
	}
	if k.Stake == nil {
		k.Stake = new(big.Int)
	}
	return &k, nil
}

func (c *Chain) saveContract(ctx context.Context, game model.Address, k *contract) error {
	data, err := json.Marshal(k)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, contractPrefix+strings.ToLower(string(game)), data)
}

func (c *Chain) balance(ctx context.Context, account model.Address) (*big.Int, error) {
	data, err := c.store.Get(ctx, balancePrefix+strings.ToLower(string(account)))
	if errors.Is(err, storage.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return nil, fmt.Errorf("decode balance of %s", account)
	}
	return n, nil
}

func (c *Chain) setBalance(ctx context.Context, account model.Address, n *big.Int) error {
	return c.store.Set(ctx, balancePrefix+strings.ToLower(string(account)), []byte(n.String()))
}

func (c *Chain) credit(ctx context.Context, account model.Address, amount *big.Int) error {
	bal, err := c.balance(ctx, account)
	if err != nil {
		return err
	}
	return c.setBalance(ctx, account, bal.Add(bal, amount))
}

func (c *Chain) debit(ctx context.Context, account model.Address, amount *big.Int) error {
	bal, err := c.balance(ctx, account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s wei, needs %s", model.ErrInsufficientFunds, account, bal, amount)
	}
	return c.setBalance(ctx, account, bal.Sub(bal, amount))
}

func (c *Chain) nextNonce(ctx context.Context, account model.Address) (uint64, error) {
	key := noncePrefix + strings.ToLower(string(account))
	var nonce uint64
	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		nonce, err = strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("decode nonce of %s: %w", account, err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return 0, err
	}
	if err := c.store.Set(ctx, key, []byte(strconv.FormatUint(nonce+1, 10))); err != nil {
		return 0, err
	}
	return nonce, nil
}
