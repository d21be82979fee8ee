package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptRoundTrip(t *testing.T) {
	svc, err := New(testKey)
	if err != nil {
		t.Fatalf("unexpected key error: %v", err)
	}
	if !svc.Configured() {
		t.Fatal("expected hex key to configure the service")
	}
	plain := []byte("%PDF-1.3 payslip")
	label := []byte("payslip-e1.pdf")
	sealed, err := svc.Encrypt(plain, label)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("expected ciphertext not to contain plaintext")
	}
	opened, err := svc.Decrypt(sealed, label)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("expected %q, got %q", plain, opened)
	}
}

func TestDecryptRejectsForeignLabel(t *testing.T) {
	svc, _ := New(testKey)
	sealed, err := svc.Encrypt([]byte("net 3000.00"), []byte("payslip-a.pdf"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := svc.Decrypt(sealed, []byte("payslip-b.pdf")); err == nil {
		t.Fatal("expected a label mismatch to fail authentication")
	}
}

func TestBase64KeyAccepted(t *testing.T) {
	raw, _ := hex.DecodeString(testKey)
	if _, err := New(base64.StdEncoding.EncodeToString(raw)); err != nil {
		t.Fatalf("expected base64 key to be accepted: %v", err)
	}
	if _, err := New("0123456789abcdef0123456789abcdef"); err != nil {
		t.Fatalf("expected 32 literal bytes to be accepted: %v", err)
	}
}

func TestUnconfiguredPassesThrough(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, _ := svc.Encrypt([]byte("data"), nil)
	if string(out) != "data" {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestRejectsShortKey(t *testing.T) {
	if _, err := New(hex.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}

func TestDecryptShortCiphertext(t *testing.T) {
	svc, _ := New(testKey)
	if _, err := svc.Decrypt([]byte{1, 2, 3}, nil); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected short ciphertext error, got %v", err)
	}
}
