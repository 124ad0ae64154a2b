package devchain

import (
	"context"
	"math/big"

	"github.com/mcoot/rpslsgame/internal/ledger"
	"github.com/mcoot/rpslsgame/internal/model"
)

// Client is a Ledger bound to one devchain account
type Client struct {
	chain   *Chain
	account model.Address
}

// Ensure Client implements the interface
var _ ledger.Ledger = (*Client)(nil)

func (c *Client) Account() model.Address {
	return c.account
}

func (c *Client) Deploy(ctx context.Context, commitment model.Commitment, opponent model.Address, stake *big.Int) (model.Address, error) {
	return c.chain.deploy(ctx, c.account, commitment, opponent, stake)
}

func (c *Client) Play(ctx context.Context, game model.Address, move model.Move, stake *big.Int) error {
	return c.chain.play(ctx, c.account, game, move, stake)
}

func (c *Client) Solve(ctx context.Context, game model.Address, move model.Move, salt model.Salt) error {
	return c.chain.solve(ctx, c.account, game, move, salt)
}

func (c *Client) J1Timeout(ctx context.Context, game model.Address) error {
	return c.chain.j1Timeout(ctx, game)
}

func (c *Client) J2Timeout(ctx context.Context, game model.Address) error {
	return c.chain.j2Timeout(ctx, game)
}

func (c *Client) State(ctx context.Context, game model.Address) (*model.GameSession, error) {
	return c.chain.state(ctx, game)
}

func (c *Client) Wins(ctx context.Context, game model.Address, a, b model.Move) (bool, error) {
	if _, err := c.chain.state(ctx, game); err != nil {
		return false, err
	}
	return win(a, b), nil
}

func (c *Client) Balance(ctx context.Context, account model.Address) (*big.Int, error) {
	return c.chain.Balance(ctx, account)
}
