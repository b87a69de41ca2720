// Package accountdata refreshes account-scoped exchange data (balances,
// trading allowances, current block) and routes updates into an external
// UI state store.
package accountdata

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a tradable token known to the client.
type Token struct {
	Symbol  string         `json:"symbol"`
	Address common.Address `json:"address"`
}

// Balance is one token balance of the active account.
type Balance struct {
	Symbol string   `json:"symbol"`
	Value  *big.Int `json:"value"`
}

// Allowance is the exchange contract's spending allowance for one token.
type Allowance struct {
	Symbol string   `json:"symbol"`
	Value  *big.Int `json:"value"`
}

// Store is the external UI state store. Dispatches are one-way and
// fire-and-forget; the store owns all retained state.
type Store interface {
	UpdateCurrentBlock(block uint64)
	UpdateBalances(balances []Balance)
	UpdateBalance(balance Balance)
	UpdateAllowances(allowances []Allowance)
	UpdateAllowance(allowance Allowance)
}

// BalanceService queries and subscribes to account balances and exchange
// allowances. Implemented by pkg/balances over the operator API.
type BalanceService interface {
	QueryEtherBalance(ctx context.Context, account common.Address) (Balance, error)
	QueryTokenBalances(ctx context.Context, account common.Address, tokens []Token) ([]Balance, error)
	QueryExchangeTokenAllowances(ctx context.Context, account common.Address, tokens []Token) ([]Allowance, error)
	SubscribeTokenBalances(ctx context.Context, account common.Address, tokens []Token, onUpdate func(Balance)) error
	SubscribeTokenAllowances(ctx context.Context, account common.Address, tokens []Token, onUpdate func(Allowance)) error
	CurrentBlock(ctx context.Context) (uint64, error)
}
