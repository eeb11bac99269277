package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// Wallet holds the bot's signing keypair.
type Wallet struct {
	priv ed25519.PrivateKey

	// PublicKey is the base58 wallet address.
	PublicKey string
}

// NewWalletFromBytes builds a wallet from the 64-byte solana-keygen keypair
// (32-byte seed followed by the 32-byte public key).
func NewWalletFromBytes(keypair []byte) (*Wallet, error) {
	if len(keypair) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("solana: keypair must be %d bytes, got %d", ed25519.PrivateKeySize, len(keypair))
	}
	priv := ed25519.PrivateKey(keypair)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("solana: derive public key")
	}
	return &Wallet{
		priv:      priv,
		PublicKey: base58.Encode(pub),
	}, nil
}

// NewWalletFromJSON parses the solana-keygen id.json format, a JSON array of
// 64 byte values.
func NewWalletFromJSON(data []byte) (*Wallet, error) {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return nil, fmt.Errorf("solana: parse keypair json: %w", err)
	}
	raw := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("solana: keypair json: byte %d out of range", n)
		}
		raw[i] = byte(n)
	}
	return NewWalletFromBytes(raw)
}

// Sign signs a transaction message.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}
