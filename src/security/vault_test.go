package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestVaultRoundTrip(t *testing.T) {
	vault, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error building vault: %v", err)
	}

	secrets := []string{
		"",
		"k",
		"9f86d081884c7d659a2feaa0c55ad015",
		"secret with spaces and ünïcode ✓",
	}

	for _, secret := range secrets {
		ciphertext, nonce, err := vault.EncryptString(secret)
		if err != nil {
			t.Fatalf("encrypt %q: %v", secret, err)
		}

		if ciphertext == secret && secret != "" {
			t.Fatalf("ciphertext equals plaintext for %q", secret)
		}

		plaintext, err := vault.DecryptString(ciphertext, nonce)
		if err != nil {
			t.Fatalf("decrypt %q: %v", secret, err)
		}
		if plaintext != secret {
			t.Fatalf("round trip mismatch: got %q, want %q", plaintext, secret)
		}
	}
}

func TestVaultNonceIsUniquePerSeal(t *testing.T) {
	vault, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error building vault: %v", err)
	}

	_, nonce1, err := vault.EncryptString("same plaintext")
	if err != nil {
		t.Fatalf("first encrypt: %v", err)
	}
	_, nonce2, err := vault.EncryptString("same plaintext")
	if err != nil {
		t.Fatalf("second encrypt: %v", err)
	}

	if nonce1 == nonce2 {
		t.Fatal("two seals produced the same nonce")
	}
}

func TestVaultDecryptWithWrongKeyFails(t *testing.T) {
	vault1, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error building vault: %v", err)
	}
	vault2, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error building vault: %v", err)
	}

	ciphertext, nonce, err := vault1.EncryptString("binance-api-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	plaintext, err := vault2.DecryptString(ciphertext, nonce)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got err=%v plaintext=%q", err, plaintext)
	}
	if plaintext != "" {
		t.Fatalf("expected empty plaintext on failure, got %q", plaintext)
	}
}

func TestVaultDecryptTamperedCiphertextFails(t *testing.T) {
	vault, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error building vault: %v", err)
	}

	ciphertext, nonce, err := vault.EncryptString("binance-api-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	raw[len(raw)/2] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := vault.DecryptString(tampered, nonce); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for tampered ciphertext, got %v", err)
	}

	if _, err := vault.DecryptString(ciphertext, "bm90LWEtbm9uY2U="); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for bad nonce, got %v", err)
	}
}

func TestNewVaultRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "not base64", key: "%%%not-base64%%%"},
		{name: "wrong length", key: base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVault(tt.key); !errors.Is(err, ErrNoEncryptionKey) {
				t.Fatalf("expected ErrNoEncryptionKey, got %v", err)
			}
		})
	}
}
