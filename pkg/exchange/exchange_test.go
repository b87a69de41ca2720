package exchange

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ampdex/dexsign/params"
	dexcrypto "github.com/ampdex/dexsign/pkg/crypto"
)

func testBuilder() *Builder {
	return NewBuilder(params.Default())
}

func testOrderParams() OrderParams {
	return OrderParams{
		UserAddress: common.HexToAddress("0xe8e84ee367bc63ddb9ff6bf03a9b0b8d707bfe16"),
		Side:        SideBuy,
		BaseToken:   common.HexToAddress("0x9a8fd8ee0e6b4e6b9f6e5e9e38c1f88a67ce1f2a"),
		QuoteToken:  common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
		Amount:      decimal.RequireFromString("1.5"),
		Price:       decimal.RequireFromString("0.2"),
	}
}

func TestNewOrderScenario(t *testing.T) {
	order, err := testBuilder().NewOrder(testOrderParams())
	if err != nil {
		t.Fatalf("failed to build order: %v", err)
	}

	if got, want := order.Amount.String(), "1500000000000000000"; got != want {
		t.Errorf("amount = %s, want %s", got, want)
	}
	if got, want := order.Pricepoint.String(), "200000"; got != want {
		t.Errorf("pricepoint = %s, want %s", got, want)
	}
	if order.Hash == (common.Hash{}) {
		t.Error("built order has empty hash")
	}
	if order.Signature != nil {
		t.Error("built order must not be signed yet")
	}
	if order.MakeFee.Sign() != 0 || order.TakeFee.Sign() != 0 {
		t.Error("unspecified fees should default to zero")
	}
}

func TestNewOrderMissingExchangeAddress(t *testing.T) {
	cfg := params.Default()
	cfg.Chain.ID = 999999

	_, err := NewBuilder(cfg).NewOrder(testOrderParams())
	if !errors.Is(err, ErrNoExchangeAddress) {
		t.Errorf("err = %v, want ErrNoExchangeAddress", err)
	}
}

func TestOrderHashDeterminism(t *testing.T) {
	b := testBuilder()
	order, err := b.NewOrder(testOrderParams())
	if err != nil {
		t.Fatalf("failed to build order: %v", err)
	}

	// Same fields, same hash, on every recompute.
	if order.ComputeHash() != order.Hash {
		t.Error("recomputed hash differs from built hash")
	}

	// A fresh build draws a fresh nonce, so the hash must differ.
	other, _ := b.NewOrder(testOrderParams())
	if other.Hash == order.Hash {
		t.Error("two builds with fresh nonces produced identical hashes")
	}

	// With the nonce pinned, the hash is identical again.
	other.Nonce = new(big.Int).Set(order.Nonce)
	if other.ComputeHash() != order.Hash {
		t.Error("identical field sets hashed to different values")
	}
}

func TestHashExcludesSignature(t *testing.T) {
	order, _ := testBuilder().NewOrder(testOrderParams())
	before := order.ComputeHash()

	order.Signature = &Signature{R: common.HexToHash("0x01"), S: common.HexToHash("0x02"), V: 27}
	if order.ComputeHash() != before {
		t.Error("attaching a signature changed the canonical hash")
	}
}

func TestOrderCancelHash(t *testing.T) {
	b := testBuilder()
	order, _ := b.NewOrder(testOrderParams())

	cancel := b.NewOrderCancel(order.Hash)
	if cancel.OrderHash != order.Hash {
		t.Error("cancel does not reference the order hash")
	}
	if cancel.Hash == (common.Hash{}) || cancel.Hash == order.Hash {
		t.Error("cancel hash must be derived from, but distinct from, the order hash")
	}
	if cancel.ComputeHash() != cancel.Hash {
		t.Error("cancel hash is not deterministic")
	}
}

func TestPrepareTrade(t *testing.T) {
	b := testBuilder()
	order, _ := b.NewOrder(testOrderParams())

	trade := &Trade{
		OrderHash:  order.Hash,
		Amount:     big.NewInt(500),
		TradeNonce: big.NewInt(1),
		Taker:      common.HexToAddress("0x28074f8d0fd78629cd59290cac185611a8d60109"),
	}
	if err := b.PrepareTrade(trade); err != nil {
		t.Fatalf("failed to prepare trade: %v", err)
	}
	if trade.Hash == (common.Hash{}) {
		t.Error("prepared trade has empty hash")
	}

	if err := b.PrepareTrade(&Trade{OrderHash: order.Hash}); err == nil {
		t.Error("trade without amount should be rejected")
	}
}

func TestSignOrderAndVerify(t *testing.T) {
	wallet, err := dexcrypto.GenerateWallet()
	if err != nil {
		t.Fatalf("failed to generate wallet: %v", err)
	}

	p := testOrderParams()
	p.UserAddress = wallet.Address()
	order, _ := testBuilder().NewOrder(p)

	if err := SignOrder(wallet, order); err != nil {
		t.Fatalf("failed to sign order: %v", err)
	}
	if order.Signature == nil {
		t.Fatal("signed order has no signature")
	}

	// Recombine R, S, V and verify against the wallet address.
	if !dexcrypto.VerifySignature(wallet.Address(), order.Hash.Bytes(), order.Signature.Compact()) {
		t.Error("recombined signature does not verify against the signer address")
	}
}

func TestSignCancelAndTrade(t *testing.T) {
	wallet, _ := dexcrypto.GenerateWallet()
	b := testBuilder()
	order, _ := b.NewOrder(testOrderParams())

	cancel := b.NewOrderCancel(order.Hash)
	if err := SignOrderCancel(wallet, cancel); err != nil {
		t.Fatalf("failed to sign cancel: %v", err)
	}
	if cancel.Signature == nil {
		t.Fatal("signed cancel has no signature")
	}
	if !dexcrypto.VerifySignature(wallet.Address(), cancel.Hash.Bytes(), cancel.Signature.Compact()) {
		t.Error("cancel signature does not verify")
	}

	trade := &Trade{
		OrderHash:  order.Hash,
		Amount:     big.NewInt(42),
		TradeNonce: big.NewInt(7),
		Taker:      wallet.Address(),
	}
	if err := b.PrepareTrade(trade); err != nil {
		t.Fatalf("failed to prepare trade: %v", err)
	}
	if err := SignTrade(wallet, trade); err != nil {
		t.Fatalf("failed to sign trade: %v", err)
	}
	if !dexcrypto.VerifySignature(wallet.Address(), trade.Hash.Bytes(), trade.Signature.Compact()) {
		t.Error("trade signature does not verify")
	}
}

// rejectingSigner simulates a wallet whose user declined the signing prompt.
type rejectingSigner struct{}

func (rejectingSigner) SignMessage([]byte) ([]byte, error) {
	return nil, errors.New("user rejected request")
}

func TestSignOrderRejectedLeavesOrderUntouched(t *testing.T) {
	order, _ := testBuilder().NewOrder(testOrderParams())
	hashBefore := order.Hash

	err := SignOrder(rejectingSigner{}, order)
	if !errors.Is(err, ErrSigningFailed) {
		t.Errorf("err = %v, want ErrSigningFailed", err)
	}
	if order.Signature != nil {
		t.Error("rejected signing must not leave any signature component set")
	}
	if order.Hash != hashBefore {
		t.Error("rejected signing must not mutate the order")
	}
}

// truncatingSigner returns a malformed signature, as a broken capability would.
type truncatingSigner struct{}

func (truncatingSigner) SignMessage([]byte) ([]byte, error) {
	return make([]byte, 64), nil
}

func TestSignOrderMalformedSignature(t *testing.T) {
	order, _ := testBuilder().NewOrder(testOrderParams())

	err := SignOrder(truncatingSigner{}, order)
	if !errors.Is(err, ErrSigningFailed) {
		t.Errorf("err = %v, want ErrSigningFailed", err)
	}
	if order.Signature != nil {
		t.Error("malformed signature must not be attached")
	}
}

func TestTradeJSONUsesStringAmounts(t *testing.T) {
	b := testBuilder()
	order, _ := b.NewOrder(testOrderParams())

	trade := &Trade{
		OrderHash:  order.Hash,
		Amount:     big.NewInt(1_500_000),
		TradeNonce: big.NewInt(9),
		Taker:      common.HexToAddress("0x28074f8d0fd78629cd59290cac185611a8d60109"),
	}
	if err := b.PrepareTrade(trade); err != nil {
		t.Fatalf("failed to prepare trade: %v", err)
	}

	raw, err := json.Marshal(trade)
	if err != nil {
		t.Fatalf("failed to marshal trade: %v", err)
	}

	// Big integers go over the wire as decimal strings, same as orders.
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("failed to unmarshal trade fields: %v", err)
	}
	if got, ok := fields["amount"].(string); !ok || got != "1500000" {
		t.Errorf("amount on the wire = %v, want string \"1500000\"", fields["amount"])
	}
	if got, ok := fields["tradeNonce"].(string); !ok || got != "9" {
		t.Errorf("tradeNonce on the wire = %v, want string \"9\"", fields["tradeNonce"])
	}

	var decoded Trade
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to unmarshal trade: %v", err)
	}
	if decoded.Amount.Cmp(trade.Amount) != 0 || decoded.TradeNonce.Cmp(trade.TradeNonce) != 0 {
		t.Error("amounts did not survive the wire format")
	}
	if decoded.ComputeHash() != trade.Hash {
		t.Error("decoded trade does not rehash to the original hash")
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	wallet, _ := dexcrypto.GenerateWallet()
	p := testOrderParams()
	p.UserAddress = wallet.Address()

	order, _ := testBuilder().NewOrder(p)
	if err := SignOrder(wallet, order); err != nil {
		t.Fatalf("failed to sign order: %v", err)
	}

	raw, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("failed to marshal order: %v", err)
	}

	var decoded Order
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to unmarshal order: %v", err)
	}

	if decoded.Hash != order.Hash {
		t.Error("hash did not survive the wire format")
	}
	if decoded.Amount.Cmp(order.Amount) != 0 || decoded.Pricepoint.Cmp(order.Pricepoint) != 0 {
		t.Error("amounts did not survive the wire format")
	}
	if decoded.ComputeHash() != order.Hash {
		t.Error("decoded order does not rehash to the original hash")
	}
	if *decoded.Signature != *order.Signature {
		t.Error("signature did not survive the wire format")
	}
}
