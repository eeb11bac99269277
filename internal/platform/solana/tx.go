package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// decodeCompactU16 reads Solana's compact-u16 length prefix and returns the
// value and the number of bytes consumed.
func decodeCompactU16(data []byte) (int, int, error) {
	var value, shift int
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated compact-u16")
		}
		b := int(data[i])
		value |= (b & 0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}

// signTransaction signs a serialized (legacy or versioned) transaction as the
// fee payer and returns it re-encoded. The fee payer's signature occupies the
// first slot of the signature table.
func signTransaction(txBase64 string, wallet *Wallet) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("solana: decode transaction: %w", err)
	}

	numSigs, prefixLen, err := decodeCompactU16(raw)
	if err != nil {
		return "", fmt.Errorf("solana: parse signature count: %w", err)
	}
	if numSigs < 1 {
		return "", fmt.Errorf("solana: transaction has no signature slots")
	}
	msgStart := prefixLen + numSigs*ed25519.SignatureSize
	if len(raw) <= msgStart {
		return "", fmt.Errorf("solana: transaction shorter than signature table")
	}

	sig := wallet.Sign(raw[msgStart:])
	copy(raw[prefixLen:prefixLen+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}
