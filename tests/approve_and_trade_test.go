package tests

import (
	"context"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ampdex/dexsign/params"
	"github.com/ampdex/dexsign/pkg/accountdata"
	"github.com/ampdex/dexsign/pkg/allowance"
	"github.com/ampdex/dexsign/pkg/api"
	"github.com/ampdex/dexsign/pkg/balances"
	"github.com/ampdex/dexsign/pkg/crypto"
	"github.com/ampdex/dexsign/pkg/exchange"
	"github.com/ampdex/dexsign/pkg/fixedpoint"
)

var (
	zrxToken  = common.HexToAddress("0xe41d2489571d322189246dafa5ebde1f4699f498")
	wethToken = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
)

type recordingNotifier struct {
	mu      sync.Mutex
	success []string
	danger  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *recordingNotifier) Danger(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.danger = append(n.danger, msg)
}

func (n *recordingNotifier) successCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.success)
}

type nullStore struct {
	mu         sync.Mutex
	allowances []accountdata.Allowance
}

func (s *nullStore) UpdateCurrentBlock(uint64) {}
func (s *nullStore) UpdateBalances([]accountdata.Balance) {}
func (s *nullStore) UpdateBalance(accountdata.Balance) {}
func (s *nullStore) UpdateAllowances([]accountdata.Allowance) {}
func (s *nullStore) UpdateAllowance(a accountdata.Allowance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances = append(s.allowances, a)
}

// The full client flow: refresh account data against the devnet stub,
// approve a token for trading, wait for the on-chain confirmation to land,
// then build and sign an order for it.
func TestApproveThenTrade(t *testing.T) {
	cfg := params.Default()

	wallet, err := crypto.GenerateWallet()
	require.NoError(t, err)
	account := wallet.Address()

	stub := api.NewServer()
	stub.RegisterToken(zrxToken, "ZRX")
	stub.SetBalance(account, "ETH", big.NewInt(1_000_000))
	stub.SetBalance(account, "ZRX", big.NewInt(5_000))
	stub.SetAllowance(account, "ZRX", big.NewInt(0))
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()

	client := balances.NewClient(srv.URL, nil)
	defer client.Close()

	notifier := &recordingNotifier{}
	store := &nullStore{}
	tracker := allowance.NewTracker(account, cfg.Allowance.Threshold, client, notifier, nil)

	tokens := []accountdata.Token{
		{Symbol: "ETH"},
		{Symbol: "ZRX", Address: zrxToken},
	}
	refresher := accountdata.NewRefresher(account, tokens, client, store, notifier, tracker, nil)
	require.NoError(t, refresher.Refresh(context.Background()))

	// ZRX starts unapproved; toggling submits one approval transaction.
	require.Equal(t, allowance.StatusNone, tracker.Status("ZRX"))
	refresher.ToggleAllowance("ZRX")
	require.Equal(t, allowance.StatusPending, tracker.Status("ZRX"))

	// A second toggle while pending is rejected with a notification, not a tx.
	refresher.ToggleAllowance("ZRX")
	notifier.mu.Lock()
	assert.Contains(t, notifier.danger, "Trading approval pending")
	notifier.mu.Unlock()

	// Confirmation arrives over the event stream and resolves the record.
	require.Eventually(t, func() bool {
		return tracker.IsAllowed("ZRX")
	}, 2*time.Second, 10*time.Millisecond)

	// Optimistic + terminal notification, nothing more.
	assert.Equal(t, 2, notifier.successCount())

	// Now trade it: 1.5 ZRX at 0.2 WETH.
	builder := exchange.NewBuilder(cfg)
	amount, _ := fixedpoint.ParseQuantity("1.5")
	price, _ := fixedpoint.ParseQuantity("0.2")

	order, err := builder.NewOrder(exchange.OrderParams{
		UserAddress: account,
		Side:        exchange.SideBuy,
		BaseToken:   zrxToken,
		QuoteToken:  wethToken,
		Amount:      amount,
		Price:       price,
	})
	require.NoError(t, err)
	require.NoError(t, exchange.SignOrder(wallet, order))

	assert.Equal(t, "1500000000000000000", order.Amount.String())
	assert.Equal(t, "200000", order.Pricepoint.String())
	assert.True(t, crypto.VerifySignature(account, order.Hash.Bytes(), order.Signature.Compact()))
}
