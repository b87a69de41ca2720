package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGenerateWallet(t *testing.T) {
	w, err := GenerateWallet()
	if err != nil {
		t.Fatalf("failed to generate wallet: %v", err)
	}

	if w.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	privHex := w.PrivateKeyHex()
	if len(privHex) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(privHex))
	}
}

func TestWalletFromPrivateKeyHex(t *testing.T) {
	w1, _ := GenerateWallet()
	privHex := w1.PrivateKeyHex()

	w2, err := WalletFromPrivateKeyHex(privHex)
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}
	if w2.Address() != w1.Address() {
		t.Errorf("address = %s, want %s", w2.Address().Hex(), w1.Address().Hex())
	}

	// 0x prefix must be accepted too
	w3, err := WalletFromPrivateKeyHex("0x" + privHex)
	if err != nil {
		t.Fatalf("failed to load 0x-prefixed key: %v", err)
	}
	if w3.Address() != w1.Address() {
		t.Errorf("0x-prefixed address = %s, want %s", w3.Address().Hex(), w1.Address().Hex())
	}
}

func TestSignAndVerify(t *testing.T) {
	w, _ := GenerateWallet()

	msg := common.HexToHash("0x5c9b0cba0f6a6d8aadbb1c4ff1e54a52e2dbd2919d3f04a4ba0e99bdd9b662ff").Bytes()
	sig, err := w.SignMessage(msg)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if len(sig) != 65 {
		t.Errorf("signature length = %d, want 65", len(sig))
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Errorf("recovery id = %d, want 27 or 28", v)
	}

	if !VerifySignature(w.Address(), msg, sig) {
		t.Error("signature verification failed")
	}

	wrongAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if VerifySignature(wrongAddr, msg, sig) {
		t.Error("signature should not verify with wrong address")
	}
}

func TestRecoverSigner(t *testing.T) {
	w, _ := GenerateWallet()
	msg := []byte("recover test")

	sig, err := w.SignMessage(msg)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	recovered, err := RecoverSigner(msg, sig)
	if err != nil {
		t.Fatalf("failed to recover signer: %v", err)
	}
	if recovered != w.Address() {
		t.Errorf("recovered = %s, want %s", recovered.Hex(), w.Address().Hex())
	}
}

func TestRecoverSignerInvalidInput(t *testing.T) {
	if _, err := RecoverSigner([]byte("msg"), []byte{1, 2, 3}); err == nil {
		t.Error("short signature should not recover")
	}

	w, _ := GenerateWallet()
	sig, _ := w.SignMessage([]byte("a"))
	if VerifySignature(w.Address(), []byte("b"), sig) {
		t.Error("signature should not verify against a different message")
	}
}
