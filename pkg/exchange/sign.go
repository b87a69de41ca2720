package exchange

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var ErrSigningFailed = errors.New("signing failed")

// Signer is the narrow signing capability bound to one account. The
// capability applies its own message-prefix convention internally; this
// package hands it raw hash bytes and gets back a 65-byte R‖S‖V signature.
type Signer interface {
	SignMessage(msg []byte) ([]byte, error)
}

// signable is the shared shape of every message kind going through the
// build → hash → sign pipeline.
type signable interface {
	ComputeHash() common.Hash
	setHash(common.Hash)
	setSignature(*Signature)
}

func (o *Order) setHash(h common.Hash)           { o.Hash = h }
func (o *Order) setSignature(sig *Signature)     { o.Signature = sig }
func (c *OrderCancel) setHash(h common.Hash)     { c.Hash = h }
func (c *OrderCancel) setSignature(s *Signature) { c.Signature = s }
func (t *Trade) setHash(h common.Hash)           { t.Hash = h }
func (t *Trade) setSignature(s *Signature)       { t.Signature = s }

// Sign runs one message through the shared pipeline: recompute the canonical
// hash, sign it, split the signature and attach hash and signature together.
// On any failure the message is left exactly as it was passed in; a
// half-signed message never escapes.
func sign(s Signer, m signable) error {
	hash := m.ComputeHash()
	sig, err := signHash(s, hash)
	if err != nil {
		return err
	}
	m.setHash(hash)
	m.setSignature(sig)
	return nil
}

// SignOrder hashes and signs an order in place.
func SignOrder(s Signer, o *Order) error {
	return sign(s, o)
}

// SignOrderCancel hashes and signs an order cancellation in place.
func SignOrderCancel(s Signer, c *OrderCancel) error {
	return sign(s, c)
}

// SignTrade hashes and signs a trade in place.
func SignTrade(s Signer, t *Trade) error {
	return sign(s, t)
}

// signHash invokes the signing capability over the raw hash bytes and splits
// the compact signature into its R, S, V components.
func signHash(s Signer, hash common.Hash) (*Signature, error) {
	raw, err := s.SignMessage(hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return splitSignature(raw)
}

func splitSignature(raw []byte) (*Signature, error) {
	if len(raw) != 65 {
		return nil, fmt.Errorf("%w: signature length %d, want 65", ErrSigningFailed, len(raw))
	}
	return &Signature{
		R: common.BytesToHash(raw[:32]),
		S: common.BytesToHash(raw[32:64]),
		V: raw[64],
	}, nil
}
