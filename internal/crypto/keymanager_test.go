package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testKeypair(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keypair := testKeypair(t)

	blob, err := EncryptKeypair(keypair, "correct horse battery staple")
	if err != nil {
		t.Fatalf("EncryptKeypair: %v", err)
	}

	got, err := DecryptKeypair(blob, "correct horse battery staple")
	if err != nil {
		t.Fatalf("DecryptKeypair: %v", err)
	}
	if !bytes.Equal(got, keypair) {
		t.Error("decrypted keypair differs from original")
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	keypair := testKeypair(t)
	blob, err := EncryptKeypair(keypair, "right")
	if err != nil {
		t.Fatalf("EncryptKeypair: %v", err)
	}
	if _, err := DecryptKeypair(blob, "wrong"); err == nil {
		t.Fatal("expected decryption failure with the wrong password")
	}
}

func TestEncryptRejectsBadInput(t *testing.T) {
	if _, err := EncryptKeypair(testKeypair(t), ""); err == nil {
		t.Error("expected error for empty password")
	}
	if _, err := EncryptKeypair([]byte("short"), "pw"); err == nil {
		t.Error("expected error for a short keypair")
	}
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	blob, err := EncryptKeypair(testKeypair(t), "pw")
	if err != nil {
		t.Fatalf("EncryptKeypair: %v", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(blob, &stored); err != nil {
		t.Fatalf("unmarshal blob: %v", err)
	}
	stored["version"] = 99
	tampered, _ := json.Marshal(stored)
	if _, err := DecryptKeypair(tampered, "pw"); err == nil {
		t.Fatal("expected error for an unsupported version")
	}
}

func TestLoadKeypairFromRawJSON(t *testing.T) {
	keypair := testKeypair(t)
	nums := make([]int, len(keypair))
	for i, b := range keypair {
		nums[i] = int(b)
	}
	rawJSON, _ := json.Marshal(nums)

	got, err := LoadKeypair(KeyConfig{RawKeypairJSON: string(rawJSON)})
	if err != nil {
		t.Fatalf("LoadKeypair: %v", err)
	}
	if !bytes.Equal(got, keypair) {
		t.Error("loaded keypair differs from original")
	}
}

func TestLoadKeypairFromEncryptedFile(t *testing.T) {
	keypair := testKeypair(t)
	blob, err := EncryptKeypair(keypair, "pw")
	if err != nil {
		t.Fatalf("EncryptKeypair: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.enc.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	got, err := LoadKeypair(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKeypair: %v", err)
	}
	if !bytes.Equal(got, keypair) {
		t.Error("loaded keypair differs from original")
	}
}

func TestLoadKeypairPrecedenceAndErrors(t *testing.T) {
	if _, err := LoadKeypair(KeyConfig{}); err == nil {
		t.Error("expected error with no source configured")
	}
	if _, err := LoadKeypair(KeyConfig{RawKeypairJSON: "[1,2,3]"}); err == nil {
		t.Error("expected error for a short raw keypair")
	}
	if _, err := LoadKeypair(KeyConfig{RawKeypairJSON: "[999]"}); err == nil {
		t.Error("expected error for an out-of-range byte")
	}
	if _, err := LoadKeypair(KeyConfig{EncryptedKeyPath: "/does/not/exist"}); err == nil {
		t.Error("expected error for a missing key file")
	}
}
