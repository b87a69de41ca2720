package accountdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ampdex/dexsign/pkg/allowance"
)

var ErrAccountNotSet = errors.New("account address is not set")

// couldNotConnectMsg is the single user-visible message any refresh failure
// folds into; individual query errors go to the log, not the user.
const couldNotConnectMsg = "Could not connect to Ethereum network"

// Refresher loads account data for one session and keeps it flowing into
// the store through subscriptions.
type Refresher struct {
	account  common.Address
	tokens   []Token
	svc      BalanceService
	store    Store
	notifier allowance.Notifier
	tracker  *allowance.Tracker
	log      *zap.Logger
}

func NewRefresher(account common.Address, tokens []Token, svc BalanceService, store Store, notifier allowance.Notifier, tracker *allowance.Tracker, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		account:  account,
		tokens:   tokens,
		svc:      svc,
		store:    store,
		notifier: notifier,
		tracker:  tracker,
		log:      log,
	}
}

// Refresh queries ether balance, token balances, allowances and the current
// block, dispatches them to the store, and establishes the balance and
// allowance subscriptions. Any failure is logged and surfaced to the user as
// one generic connectivity notification.
func (r *Refresher) Refresh(ctx context.Context) error {
	err := r.refresh(ctx)
	if err != nil {
		r.log.Error("account data refresh failed", zap.Error(err), zap.String("account", r.account.Hex()))
		r.notifier.Danger(couldNotConnectMsg)
	}
	return err
}

func (r *Refresher) refresh(ctx context.Context) error {
	if r.account == (common.Address{}) {
		return ErrAccountNotSet
	}

	// ETH is not a token; it is queried separately and excluded from the
	// token balance and allowance calls.
	tokens := make([]Token, 0, len(r.tokens))
	for _, tok := range r.tokens {
		if tok.Symbol != "ETH" {
			tokens = append(tokens, tok)
		}
	}

	etherBalance, err := r.svc.QueryEtherBalance(ctx, r.account)
	if err != nil {
		return fmt.Errorf("query ether balance: %w", err)
	}
	tokenBalances, err := r.svc.QueryTokenBalances(ctx, r.account, tokens)
	if err != nil {
		return fmt.Errorf("query token balances: %w", err)
	}
	allowances, err := r.svc.QueryExchangeTokenAllowances(ctx, r.account, tokens)
	if err != nil {
		return fmt.Errorf("query token allowances: %w", err)
	}
	currentBlock, err := r.svc.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("query current block: %w", err)
	}

	r.store.UpdateCurrentBlock(currentBlock)
	r.store.UpdateBalances(append([]Balance{etherBalance}, tokenBalances...))
	r.store.UpdateAllowances(allowances)
	if r.tracker != nil {
		for _, a := range allowances {
			r.tracker.Apply(a.Symbol, a.Value)
		}
	}

	err = r.svc.SubscribeTokenBalances(ctx, r.account, tokens, func(b Balance) {
		r.store.UpdateBalance(b)
	})
	if err != nil {
		return fmt.Errorf("subscribe token balances: %w", err)
	}

	// Allowance events also resolve any pending approval in the tracker;
	// this is where the Pending state reaches its terminal value.
	err = r.svc.SubscribeTokenAllowances(ctx, r.account, tokens, func(a Allowance) {
		r.store.UpdateAllowance(a)
		if r.tracker != nil {
			r.tracker.Apply(a.Symbol, a.Value)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe token allowances: %w", err)
	}

	return nil
}

// ToggleAllowance flips trading approval for a symbol. Errors never
// propagate past this call site; each maps to exactly one notification.
func (r *Refresher) ToggleAllowance(symbol string) {
	if r.tracker == nil {
		r.log.Warn("toggle allowance without allowance tracking", zap.String("symbol", symbol))
		r.notifier.Danger("Allowance updates are not available")
		return
	}

	token, ok := r.tokenBySymbol(symbol)
	if !ok {
		r.log.Warn("toggle allowance for unknown symbol", zap.String("symbol", symbol))
		r.notifier.Danger(fmt.Sprintf("Unknown token %s", symbol))
		return
	}

	err := r.tracker.Toggle(symbol, token.Address)
	switch {
	case err == nil:
	case errors.Is(err, allowance.ErrApprovalPending):
		r.notifier.Danger("Trading approval pending")
	default:
		r.log.Error("allowance toggle failed", zap.String("symbol", symbol), zap.Error(err))
		r.notifier.Danger(fmt.Sprintf("%s allowance update could not be submitted. Please try again.", symbol))
	}
}

func (r *Refresher) tokenBySymbol(symbol string) (Token, bool) {
	for _, tok := range r.tokens {
		if tok.Symbol == symbol {
			return tok, true
		}
	}
	return Token{}, false
}
