// Package ethereum talks to a deployed game contract over JSON-RPC.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
)

// Backend is the node capability the client needs. Both *ethclient.Client
// and the go-ethereum simulated backend satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Config holds connection settings
type Config struct {
	// RPCURL is the node endpoint, e.g. http://127.0.0.1:8545
	RPCURL string
	// PrivateKey is the hex-encoded secp256k1 key calls are signed with
	PrivateKey string
	// ConfirmTimeout bounds the wait for each transaction to be mined
	ConfirmTimeout time.Duration
}

// gasHeadroomPercent scales node gas estimates. The bare estimate for the
// contract constructor runs out of gas.
const gasHeadroomPercent = 150

// Client is a Ledger backed by a real chain
type Client struct {
	backend        Backend
	abi            abi.ABI
	bytecode       []byte
	key            *ecdsa.PrivateKey
	chainID        *big.Int
	account        model.Address
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// Ensure Client implements the interface
var _ ledger.Ledger = (*Client)(nil)

// Dial connects to cfg.RPCURL and binds the signing key
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	c, err := NewWithBackend(ctx, rpc, key, cfg.ConfirmTimeout, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	return c, nil
}

// NewWithBackend creates a Client over an existing backend (for testing)
func NewWithBackend(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, confirmTimeout time.Duration, logger *slog.Logger) (*Client, error) {
	parsed, err := contractABI()
	if err != nil {
		return nil, err
	}
	code, err := contractBytecode()
	if err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	return &Client{
		backend:        backend,
		abi:            parsed,
		bytecode:       code,
		key:            key,
		chainID:        chainID,
		account:        model.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey)),
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}, nil
}

func (c *Client) Account() model.Address {
	return c.account
}

func (c *Client) transactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Value = value
	return opts, nil
}

// gasLimit estimates the call and adds headroom. A revert surfaces here,
// before anything is signed.
func (c *Client) gasLimit(ctx context.Context, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	estimate, err := c.backend.EstimateGas(ctx, geth.CallMsg{
		From:  c.account.Common(),
		To:    to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, err
	}
	return estimate * gasHeadroomPercent / 100, nil
}

func (c *Client) bound(game model.Address) *bind.BoundContract {
	return bind.NewBoundContract(game.Common(), c.abi, c.backend, c.backend, c.backend)
}

func (c *Client) Deploy(ctx context.Context, commitment model.Commitment, opponent model.Address, stake *big.Int) (model.Address, error) {
	opts, err := c.transactOpts(ctx, stake)
	if err != nil {
		return "", err
	}
	args, err := c.abi.Pack("", [32]byte(commitment), opponent.Common())
	if err != nil {
		return "", fmt.Errorf("pack constructor: %w", err)
	}
	if opts.GasLimit, err = c.gasLimit(ctx, nil, stake, append(append([]byte{}, c.bytecode...), args...)); err != nil {
		return "", callError("deploy", err)
	}
	_, tx, _, err := bind.DeployContract(opts, c.abi, c.bytecode, c.backend, [32]byte(commitment), opponent.Common())
	if err != nil {
		return "", callError("deploy", err)
	}
	c.logger.Info("deploy submitted", "tx", tx.Hash().Hex())

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	addr, err := bind.WaitDeployed(waitCtx, c.backend, tx)
	if err != nil {
		return "", fmt.Errorf("%w: deploy: %v", model.ErrLedgerRejected, err)
	}
	return model.AddressFromCommon(addr), nil
}

func (c *Client) Play(ctx context.Context, game model.Address, move model.Move, stake *big.Int) error {
	return c.transact(ctx, game, stake, "play", uint8(move))
}

func (c *Client) Solve(ctx context.Context, game model.Address, move model.Move, salt model.Salt) error {
	return c.transact(ctx, game, nil, "solve", uint8(move), salt.BigInt())
}

func (c *Client) J1Timeout(ctx context.Context, game model.Address) error {
	return c.transact(ctx, game, nil, "j1Timeout")
}

func (c *Client) J2Timeout(ctx context.Context, game model.Address) error {
	return c.transact(ctx, game, nil, "j2Timeout")
}

// transact sends one call and waits for a successful receipt
func (c *Client) transact(ctx context.Context, game model.Address, value *big.Int, method string, args ...any) error {
	opts, err := c.transactOpts(ctx, value)
	if err != nil {
		return err
	}
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	to := game.Common()
	if opts.GasLimit, err = c.gasLimit(ctx, &to, value, input); err != nil {
		return callError(method, err)
	}
	tx, err := c.bound(game).Transact(opts, method, args...)
	if err != nil {
		return callError(method, err)
	}
	c.logger.Info("transaction submitted", "method", method, "game", game, "tx", tx.Hash().Hex())

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return fmt.Errorf("%w: %s: waiting for receipt: %v", model.ErrLedger, method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s reverted in block %s", model.ErrLedgerRejected, method, receipt.BlockNumber)
	}
	return nil
}

func (c *Client) State(ctx context.Context, game model.Address) (*model.GameSession, error) {
	code, err := c.backend.CodeAt(ctx, game.Common(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read code: %v", model.ErrLedger, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrGameNotFound, game)
	}

	contract := c.bound(game)
	opts := &bind.CallOpts{Context: ctx}

	var (
		j1, j2     common.Address
		c1Hash     [32]byte
		c2         uint8
		stake      *big.Int
		lastAction *big.Int
		timeout    *big.Int
	)
	reads := []struct {
		method string
		dst    any
	}{
		{"j1", &j1},
		{"j2", &j2},
		{"c1Hash", &c1Hash},
		{"c2", &c2},
		{"stake", &stake},
		{"lastAction", &lastAction},
		{"TIMEOUT", &timeout},
	}
	for _, r := range reads {
		if err := call(contract, opts, r.method, r.dst); err != nil {
			return nil, err
		}
	}

	return &model.GameSession{
		Address:       game,
		Player1:       model.AddressFromCommon(j1),
		Player2:       model.AddressFromCommon(j2),
		Commitment:    model.Commitment(c1Hash),
		OpponentMove:  model.Move(c2),
		Stake:         stake,
		LastAction:    time.Unix(lastAction.Int64(), 0).UTC(),
		TimeoutWindow: time.Duration(timeout.Int64()) * time.Second,
	}, nil
}

func (c *Client) Wins(ctx context.Context, game model.Address, a, b model.Move) (bool, error) {
	var w bool
	if err := call(c.bound(game), &bind.CallOpts{Context: ctx}, "win", &w, uint8(a), uint8(b)); err != nil {
		return false, err
	}
	return w, nil
}

func (c *Client) Balance(ctx context.Context, account model.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, account.Common(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", model.ErrLedger, err)
	}
	return bal, nil
}

// call reads a single-output view into dst
func call(contract *bind.BoundContract, opts *bind.CallOpts, method string, dst any, args ...any) error {
	var out []any
	if err := contract.Call(opts, &out, method, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrLedger, method, err)
	}
	if len(out) != 1 {
		return fmt.Errorf("%w: %s returned %d values", model.ErrLedger, method, len(out))
	}
	converted := abi.ConvertType(out[0], dst)
	if converted == nil {
		return fmt.Errorf("%w: %s returned %T", model.ErrLedger, method, out[0])
	}
	return nil
}

// callError classifies a failure to submit a transaction
func callError(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", model.ErrLedger, method, err)
	}
	if strings.Contains(err.Error(), "insufficient funds") {
		return fmt.Errorf("%w: %s: %v", model.ErrInsufficientFunds, method, err)
	}
	return fmt.Errorf("%w: %s: %v", model.ErrLedgerRejected, method, err)
}
