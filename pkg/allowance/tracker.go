// Package allowance tracks per-token trading approval state and guards
// against concurrent approval transactions for the same token.
package allowance

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrApprovalPending is returned when a toggle is attempted for a symbol
// whose previous approval transaction has not been confirmed yet. Submitting
// a second transaction would waste gas or race on the resulting allowance.
var ErrApprovalPending = errors.New("trading approval pending")

// Status is the approval state of one token symbol.
type Status uint8

const (
	StatusNone Status = iota
	StatusPending
	StatusAllowed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAllowed:
		return "allowed"
	default:
		return "none"
	}
}

// Record is the tracked approval state for one symbol.
type Record struct {
	Symbol string
	Status Status
	Value  *big.Int
}

// BlockchainService submits an allowance update transaction and invokes
// onConfirmed with the confirmation outcome sometime after submission.
type BlockchainService interface {
	UpdateExchangeAllowance(token, account common.Address, value *big.Int, onConfirmed func(confirmed bool)) error
}

// Notifier receives the user-visible outcome of allowance operations.
type Notifier interface {
	Success(msg string)
	Danger(msg string)
}

// Tracker owns the per-symbol approval records for one account session.
// Create one per session and Reset it on account change.
type Tracker struct {
	mu        sync.RWMutex
	account   common.Address
	threshold *big.Int
	records   map[string]*Record
	svc       BlockchainService
	notifier  Notifier
	log       *zap.Logger
}

func NewTracker(account common.Address, threshold *big.Int, svc BlockchainService, notifier Notifier, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		account:   account,
		threshold: threshold,
		records:   make(map[string]*Record),
		svc:       svc,
		notifier:  notifier,
		log:       log,
	}
}

// Toggle flips the trading approval for a symbol: an allowed token gets a
// revoke transaction (target 0), anything else gets an approval transaction
// (target = configured threshold). The record is Pending from the moment the
// transaction is submitted until the subscription feed applies the confirmed
// value; a toggle while Pending is rejected without submitting anything.
func (t *Tracker) Toggle(symbol string, token common.Address) error {
	t.mu.Lock()
	rec := t.recordLocked(symbol)
	if rec.Status == StatusPending {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", symbol, ErrApprovalPending)
	}
	wasAllowed := rec.Status == StatusAllowed
	prev := rec.Status
	rec.Status = StatusPending
	t.mu.Unlock()

	txID := uuid.NewString()
	target := t.threshold
	onConfirmed := t.approvalHandler(symbol, txID)
	if wasAllowed {
		target = big.NewInt(0)
		onConfirmed = t.removalHandler(symbol, txID)
	}

	t.log.Info("submitting allowance update",
		zap.String("symbol", symbol),
		zap.String("tx", txID),
		zap.String("target", target.String()))

	if err := t.svc.UpdateExchangeAllowance(token, t.account, target, onConfirmed); err != nil {
		t.mu.Lock()
		rec.Status = prev
		t.mu.Unlock()
		return fmt.Errorf("failed to submit allowance update for %s: %w", symbol, err)
	}

	t.notifier.Success(fmt.Sprintf("%s approval pending. You will be able to trade after transaction is confirmed.", symbol))
	return nil
}

// approvalHandler emits the terminal notification for an approval
// transaction, exactly once. The record's own terminal transition arrives
// through the allowance subscription feed, not through this handler.
func (t *Tracker) approvalHandler(symbol, txID string) func(bool) {
	var once sync.Once
	return func(confirmed bool) {
		once.Do(func() {
			t.log.Info("allowance approval confirmed",
				zap.String("symbol", symbol), zap.String("tx", txID), zap.Bool("confirmed", confirmed))
			if confirmed {
				t.notifier.Success(fmt.Sprintf("%s Approval Successful. You can now start trading!", symbol))
			} else {
				t.notifier.Danger(fmt.Sprintf("%s Approval Failed. Please try again.", symbol))
			}
		})
	}
}

func (t *Tracker) removalHandler(symbol, txID string) func(bool) {
	var once sync.Once
	return func(confirmed bool) {
		once.Do(func() {
			t.log.Info("allowance removal confirmed",
				zap.String("symbol", symbol), zap.String("tx", txID), zap.Bool("confirmed", confirmed))
			if confirmed {
				t.notifier.Success(fmt.Sprintf("%s Allowance Removal Successful.", symbol))
			} else {
				t.notifier.Danger(fmt.Sprintf("%s Allowance Removal Failed. Please try again.", symbol))
			}
		})
	}
}

// Apply records a confirmed on-chain allowance value for a symbol, resolving
// any pending transition: zero means revoked, at or above the threshold means
// allowed for trading.
func (t *Tracker) Apply(symbol string, value *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.recordLocked(symbol)
	rec.Value = value
	if value.Sign() == 0 {
		rec.Status = StatusNone
	} else if value.Cmp(t.threshold) >= 0 {
		rec.Status = StatusAllowed
	}
}

// Status returns the tracked approval status for a symbol.
func (t *Tracker) Status(symbol string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.records[symbol]; ok {
		return rec.Status
	}
	return StatusNone
}

func (t *Tracker) IsAllowed(symbol string) bool { return t.Status(symbol) == StatusAllowed }
func (t *Tracker) IsPending(symbol string) bool { return t.Status(symbol) == StatusPending }

// Reset drops all records. Call on account change or logout.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*Record)
}

func (t *Tracker) recordLocked(symbol string) *Record {
	rec, ok := t.records[symbol]
	if !ok {
		rec = &Record{Symbol: symbol, Status: StatusNone, Value: big.NewInt(0)}
		t.records[symbol] = rec
	}
	return rec
}
