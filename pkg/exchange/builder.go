package exchange

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ampdex/dexsign/params"
	"github.com/ampdex/dexsign/pkg/fixedpoint"
)

var ErrNoExchangeAddress = errors.New("no exchange address configured for chain")

// OrderParams are the human-entered inputs to an order: decimal amount and
// price, the token pair, and the fee terms quoted by the operator.
type OrderParams struct {
	UserAddress common.Address
	Side        Side
	BaseToken   common.Address
	QuoteToken  common.Address
	Amount      decimal.Decimal
	Price       decimal.Decimal
	MakeFee     *big.Int
	TakeFee     *big.Int
}

// Builder assembles unsigned canonical messages for one chain. The exchange
// contract address is resolved from the configured table at build time.
type Builder struct {
	cfg params.Config
}

func NewBuilder(cfg params.Config) *Builder {
	return &Builder{cfg: cfg}
}

// NewOrder builds an unsigned order: normalizes amount and price to exchange
// scale, attaches a fresh nonce and computes the canonical hash. The returned
// order has no signature.
func (b *Builder) NewOrder(p OrderParams) (*Order, error) {
	exchangeAddress, ok := b.cfg.ExchangeAddress(b.cfg.Chain.ID)
	if !ok {
		return nil, fmt.Errorf("%w: chain id %d", ErrNoExchangeAddress, b.cfg.Chain.ID)
	}

	amount, err := fixedpoint.NormalizeAmount(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("order amount: %w", err)
	}
	pricepoint, err := fixedpoint.NormalizePrice(p.Price)
	if err != nil {
		return nil, fmt.Errorf("order price: %w", err)
	}
	nonce, err := RandomNonce()
	if err != nil {
		return nil, err
	}

	o := &Order{
		ExchangeAddress: exchangeAddress,
		UserAddress:     p.UserAddress,
		BaseToken:       p.BaseToken,
		QuoteToken:      p.QuoteToken,
		Amount:          amount,
		Pricepoint:      pricepoint,
		Side:            p.Side,
		MakeFee:         orZero(p.MakeFee),
		TakeFee:         orZero(p.TakeFee),
		Nonce:           nonce,
	}
	o.Hash = o.ComputeHash()
	return o, nil
}

// NewOrderCancel builds an unsigned cancellation for an existing order hash.
func (b *Builder) NewOrderCancel(orderHash common.Hash) *OrderCancel {
	c := &OrderCancel{OrderHash: orderHash}
	c.Hash = c.ComputeHash()
	return c
}

// PrepareTrade attaches the canonical hash to an externally assembled trade.
func (b *Builder) PrepareTrade(t *Trade) error {
	if t.Amount == nil || t.TradeNonce == nil {
		return fmt.Errorf("trade is missing amount or trade nonce")
	}
	t.Hash = t.ComputeHash()
	return nil
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}
