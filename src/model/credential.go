package model

import "time"

// ExchangeCredential holds one exchange's API key pair for one user.
// All key material is stored encrypted; every ciphertext carries its own
// nonce. Plaintext exists only inside a single dispatch, after the
// security vault has opened it.
type ExchangeCredential struct {
	UserID     string `json:"user_id"`
	ExchangeID string `json:"exchange_id"`

	APIKeyCipher    string `json:"api_key"`
	APIKeyNonce     string `json:"api_key_nonce"`
	APISecretCipher string `json:"api_secret"`
	APISecretNonce  string `json:"api_secret_nonce"`

	// Some exchanges (KuCoin) require a passphrase as well.
	APIPassphraseCipher string `json:"api_passphrase,omitempty"`
	APIPassphraseNonce  string `json:"api_passphrase_nonce,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
