// Package crypto holds the client's signing capability: a secp256k1 wallet
// producing Ethereum-style prefixed message signatures.
package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet manages one ECDSA key pair bound to an Ethereum address.
// All signing requests in a session go through a single Wallet instance;
// each request is independent and the Wallet keeps no per-request state.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateWallet creates a wallet with a fresh random secp256k1 key pair.
func GenerateWallet() (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newWallet(privateKey), nil
}

// WalletFromPrivateKeyHex creates a wallet from a hex-encoded private key
// ("0x1234..." or "1234...", 64 hex chars).
func WalletFromPrivateKeyHex(hexKey string) (*Wallet, error) {
	if len(hexKey) >= 2 && hexKey[0:2] == "0x" {
		hexKey = hexKey[2:]
	}
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newWallet(privateKey), nil
}

func newWallet(privateKey *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the Ethereum address derived from the public key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix)
// WARNING: Keep this secret! Never expose to users or logs
func (w *Wallet) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(w.privateKey))
}

// SignMessage signs an arbitrary message with the Ethereum personal-message
// convention: the digest is keccak256("\x19Ethereum Signed Message:\n" +
// len(msg) + msg). Callers pass raw bytes (typically a 32-byte order hash);
// the prefixing convention is this capability's responsibility.
// Returns a 65-byte signature [R || S || V] with V in {27, 28}.
func (w *Wallet) SignMessage(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(prefixedHash(msg), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// VerifySignature reports whether sig over msg was produced by addr.
// Applies the same personal-message prefix as SignMessage.
func VerifySignature(addr common.Address, msg, sig []byte) bool {
	recovered, err := RecoverSigner(msg, sig)
	if err != nil {
		return false
	}
	return recovered == addr
}

// RecoverSigner recovers the address that signed msg with SignMessage.
func RecoverSigner(msg, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	// Undo the +27 recovery id offset before Ecrecover.
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pubBytes, err := crypto.Ecrecover(prefixedHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func prefixedHash(msg []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}
