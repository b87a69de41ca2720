// Package exchange builds, hashes and signs the canonical messages a client
// submits to the exchange: orders, order cancellations and trade confirmations.
package exchange

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Side is the direction of an order.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Encoded returns the uint256 value of the side in the canonical order
// encoding: BUY = 0, SELL = 1.
func (s Side) Encoded() *big.Int {
	return big.NewInt(int64(s))
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v {
	case "BUY":
		*s = SideBuy
	case "SELL":
		*s = SideSell
	default:
		return fmt.Errorf("unknown order side %q", v)
	}
	return nil
}

// Signature carries the three components of one secp256k1 signature.
// All three are set together or none is; a partially populated Signature
// never exists.
type Signature struct {
	R common.Hash `json:"R"`
	S common.Hash `json:"S"`
	V byte        `json:"V"`
}

// Compact recombines R, S, V into the 65-byte wire signature.
func (sig *Signature) Compact() []byte {
	out := make([]byte, 65)
	copy(out[:32], sig.R.Bytes())
	copy(out[32:64], sig.S.Bytes())
	out[64] = sig.V
	return out
}

// Order is the canonical limit order message. Amount and Pricepoint are
// exchange-scale integers produced by pkg/fixedpoint. Hash covers every
// field except Signature; once signed the order is immutable.
type Order struct {
	ExchangeAddress common.Address
	UserAddress     common.Address
	BaseToken       common.Address
	QuoteToken      common.Address
	Amount          *big.Int
	Pricepoint      *big.Int
	Side            Side
	MakeFee         *big.Int
	TakeFee         *big.Int
	Nonce           *big.Int
	Hash            common.Hash
	Signature       *Signature
}

// orderJSON is the exchange wire format: big integers travel as decimal
// strings so 1e18-scale amounts survive JSON number precision limits.
type orderJSON struct {
	ExchangeAddress common.Address `json:"exchangeAddress"`
	UserAddress     common.Address `json:"userAddress"`
	BaseToken       common.Address `json:"baseToken"`
	QuoteToken      common.Address `json:"quoteToken"`
	Amount          string         `json:"amount"`
	Pricepoint      string         `json:"pricepoint"`
	Side            Side           `json:"side"`
	MakeFee         string         `json:"makeFee"`
	TakeFee         string         `json:"takeFee"`
	Nonce           string         `json:"nonce"`
	Hash            common.Hash    `json:"hash"`
	Signature       *Signature     `json:"signature,omitempty"`
}

func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ExchangeAddress: o.ExchangeAddress,
		UserAddress:     o.UserAddress,
		BaseToken:       o.BaseToken,
		QuoteToken:      o.QuoteToken,
		Amount:          bigString(o.Amount),
		Pricepoint:      bigString(o.Pricepoint),
		Side:            o.Side,
		MakeFee:         bigString(o.MakeFee),
		TakeFee:         bigString(o.TakeFee),
		Nonce:           bigString(o.Nonce),
		Hash:            o.Hash,
		Signature:       o.Signature,
	})
}

func (o *Order) UnmarshalJSON(b []byte) error {
	var w orderJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	amount, err := parseBig(w.Amount, "amount")
	if err != nil {
		return err
	}
	pricepoint, err := parseBig(w.Pricepoint, "pricepoint")
	if err != nil {
		return err
	}
	makeFee, err := parseBig(w.MakeFee, "makeFee")
	if err != nil {
		return err
	}
	takeFee, err := parseBig(w.TakeFee, "takeFee")
	if err != nil {
		return err
	}
	nonce, err := parseBig(w.Nonce, "nonce")
	if err != nil {
		return err
	}

	*o = Order{
		ExchangeAddress: w.ExchangeAddress,
		UserAddress:     w.UserAddress,
		BaseToken:       w.BaseToken,
		QuoteToken:      w.QuoteToken,
		Amount:          amount,
		Pricepoint:      pricepoint,
		Side:            w.Side,
		MakeFee:         makeFee,
		TakeFee:         takeFee,
		Nonce:           nonce,
		Hash:            w.Hash,
		Signature:       w.Signature,
	}
	return nil
}

// OrderCancel references an existing order by hash and is itself hashed
// and signed with the same discipline as the order.
type OrderCancel struct {
	OrderHash common.Hash `json:"orderHash"`
	Hash      common.Hash `json:"hash"`
	Signature *Signature  `json:"signature,omitempty"`
}

// Trade is a taker's confirmation of a maker order. The field set is
// assembled by the caller; this package only attaches the canonical hash
// and the signature.
type Trade struct {
	OrderHash  common.Hash
	Amount     *big.Int
	TradeNonce *big.Int
	Taker      common.Address
	Hash       common.Hash
	Signature  *Signature
}

type tradeJSON struct {
	OrderHash  common.Hash    `json:"orderHash"`
	Amount     string         `json:"amount"`
	TradeNonce string         `json:"tradeNonce"`
	Taker      common.Address `json:"taker"`
	Hash       common.Hash    `json:"hash"`
	Signature  *Signature     `json:"signature,omitempty"`
}

func (t *Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(tradeJSON{
		OrderHash:  t.OrderHash,
		Amount:     bigString(t.Amount),
		TradeNonce: bigString(t.TradeNonce),
		Taker:      t.Taker,
		Hash:       t.Hash,
		Signature:  t.Signature,
	})
}

func (t *Trade) UnmarshalJSON(b []byte) error {
	var w tradeJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	amount, err := parseBig(w.Amount, "amount")
	if err != nil {
		return err
	}
	tradeNonce, err := parseBig(w.TradeNonce, "tradeNonce")
	if err != nil {
		return err
	}

	*t = Trade{
		OrderHash:  w.OrderHash,
		Amount:     amount,
		TradeNonce: tradeNonce,
		Taker:      w.Taker,
		Hash:       w.Hash,
		Signature:  w.Signature,
	}
	return nil
}

func bigString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

func parseBig(s, field string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}
