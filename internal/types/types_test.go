package types

import (
	"crypto/ed25519"
	"testing"
)

func TestPubkeyBase58(t *testing.T) {
	p, err := PubkeyFromBase58("EwPUHhorTGBKyNu7vFezfFCFej5GgNmXmABzs4VKqPEo")
	if err != nil {
		t.Fatalf("PubkeyFromBase58 failed: %v", err)
	}
	if p != PlaygroundProgramAddr {
		t.Errorf("parsed pubkey does not match PlaygroundProgramAddr")
	}
	if got := p.String(); got != "EwPUHhorTGBKyNu7vFezfFCFej5GgNmXmABzs4VKqPEo" {
		t.Errorf("String() = %s", got)
	}

	if _, err := PubkeyFromBase58("abc"); err == nil {
		t.Error("expected error for short pubkey")
	}
}

func TestSystemProgramIsZero(t *testing.T) {
	if !SystemProgramAddr.IsZero() {
		t.Error("system program address should be all zeros")
	}
	if PlaygroundProgramAddr.IsZero() {
		t.Error("playground address should not be zero")
	}
}

func TestPubkeyText(t *testing.T) {
	text, err := BPFLoaderUpgradeableAddr.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var p Pubkey
	if err := p.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if p != BPFLoaderUpgradeableAddr {
		t.Error("text round trip mismatch")
	}
}

func TestSignatureVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	msg := []byte("close accounts")

	var sig Signature
	copy(sig[:], ed25519.Sign(priv, msg))

	if !sig.Verify(PubkeyFromPublicKey(pub), msg) {
		t.Error("signature should verify")
	}
	if sig.Verify(PubkeyFromPublicKey(pub), []byte("other")) {
		t.Error("signature should not verify a different message")
	}

	parsed, err := SignatureFromBase58(sig.String())
	if err != nil {
		t.Fatalf("SignatureFromBase58 failed: %v", err)
	}
	if parsed != sig {
		t.Error("signature base58 round trip mismatch")
	}
}

func TestIsBuiltinProgram(t *testing.T) {
	if !IsBuiltinProgram(SystemProgramAddr) {
		t.Error("system program is builtin")
	}
	if IsBuiltinProgram(PlaygroundProgramAddr) {
		t.Error("playground is a deployed program, not builtin")
	}
}
