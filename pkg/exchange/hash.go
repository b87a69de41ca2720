package exchange

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Canonical hashing. Each message kind hashes a fixed, documented field
// ordering; the on-chain verifier recomputes the same packed encoding, so
// the byte layout here must never change. Addresses are packed as 20 bytes,
// integers as left-padded 32-byte uint256 words. Signature fields are never
// part of any hash.

// ComputeHash returns the canonical order hash:
// keccak256(exchangeAddress ‖ userAddress ‖ baseToken ‖ quoteToken ‖
// amount ‖ pricepoint ‖ side ‖ nonce ‖ makeFee ‖ takeFee).
func (o *Order) ComputeHash() common.Hash {
	return keccak256(
		o.ExchangeAddress.Bytes(),
		o.UserAddress.Bytes(),
		o.BaseToken.Bytes(),
		o.QuoteToken.Bytes(),
		uint256Word(o.Amount),
		uint256Word(o.Pricepoint),
		uint256Word(o.Side.Encoded()),
		uint256Word(o.Nonce),
		uint256Word(o.MakeFee),
		uint256Word(o.TakeFee),
	)
}

// ComputeHash returns keccak256(orderHash).
func (c *OrderCancel) ComputeHash() common.Hash {
	return keccak256(c.OrderHash.Bytes())
}

// ComputeHash returns the canonical trade hash:
// keccak256(orderHash ‖ amount ‖ tradeNonce ‖ taker).
func (t *Trade) ComputeHash() common.Hash {
	return keccak256(
		t.OrderHash.Bytes(),
		uint256Word(t.Amount),
		uint256Word(t.TradeNonce),
		t.Taker.Bytes(),
	)
}

func keccak256(chunks ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return common.BytesToHash(h.Sum(nil))
}

func uint256Word(x *big.Int) []byte {
	if x == nil {
		x = big.NewInt(0)
	}
	return common.BigToHash(x).Bytes()
}

var maxNonce = new(big.Int).Lsh(big.NewInt(1), 128)

// RandomNonce draws a fresh single-use nonce in [0, 2^128). A new nonce is
// attached to every order so orders with identical economic terms still
// hash to distinct values.
func RandomNonce() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, maxNonce)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return n, nil
}
