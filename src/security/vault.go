package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var (
	// ErrNoEncryptionKey means EXCHANGE_CREDENTIALS_KEY is unset or not a
	// valid base64 32-byte key. This is an operator problem and fatal at
	// startup for anything that needs to encrypt or decrypt.
	ErrNoEncryptionKey = errors.New("exchange credentials key is not configured")

	// ErrDecryptFailed means the ciphertext failed authentication: it was
	// tampered with or sealed under a different key. No partial plaintext
	// is ever returned.
	ErrDecryptFailed = errors.New("credential decryption failed")
)

const nonceSize = 24

// Vault seals and opens exchange API key material with a process-wide
// secret key. It keeps no state besides the key and never logs either
// the key or any plaintext.
type Vault struct {
	key [32]byte
}

// NewVault builds a Vault from a base64-encoded 32-byte key.
func NewVault(encodedKey string) (*Vault, error) {
	if encodedKey == "" {
		return nil, ErrNoEncryptionKey
	}

	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrNoEncryptionKey)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrNoEncryptionKey, len(raw))
	}

	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// NewVaultFromConfig reads the key from the process environment.
func NewVaultFromConfig() (*Vault, error) {
	return NewVault(GetConfig().ExchangeCRKey)
}

// EncryptString seals plaintext and returns the base64 ciphertext and
// the base64 nonce used, both safe to persist.
func (v *Vault) EncryptString(plaintext string) (ciphertext, nonce string, err error) {
	var n [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nil, []byte(plaintext), &n, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(n[:]), nil
}

// DecryptString opens a ciphertext produced by EncryptString. Any
// authentication failure returns ErrDecryptFailed.
func (v *Vault) DecryptString(ciphertext, nonce string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptFailed
	}

	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil || len(rawNonce) != nonceSize {
		return "", ErrDecryptFailed
	}

	var n [nonceSize]byte
	copy(n[:], rawNonce)

	plaintext, ok := secretbox.Open(nil, sealed, &n, &v.key)
	if !ok {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
