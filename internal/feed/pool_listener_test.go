package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
	"github.com/ryabkov/solsniper/internal/platform/solana"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsPoolInit(t *testing.T) {
	tests := []struct {
		name string
		logs []string
		want bool
	}{
		{"initialize2", []string{"Program log: Instruction: initialize2"}, true},
		{"ray_log", []string{"Program log: init_pc_amount: 1000000"}, true},
		{"swap only", []string{"Program log: Instruction: Swap", "Program log: ray_log"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if got := isPoolInit(tt.logs); got != tt.want {
			t.Errorf("%s: isPoolInit = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// initTxResult builds a getTransaction result whose only Raydium instruction
// carries the initialize2 account table. The account list maps index i of the
// instruction to key "acct{i}"; coin and pc mints are parameterized.
func initTxResult(coinMint, pcMint string) string {
	keys := []string{
		RaydiumAMMProgram, // 0: program
		"acct1", "acct2", "acct3",
		"poolAddr",  // instruction index 4 -> amm
		"acct5", "acct6",
		"lpMintAddr", // 7
		coinMint,     // 8
		pcMint,       // 9
		"coinVault",  // 10
		"pcVault",    // 11
	}
	accounts := make([]int, 21)
	for i := range accounts {
		accounts[i] = i
	}
	tx := map[string]any{
		"transaction": map[string]any{
			"message": map[string]any{
				"accountKeys": keys,
				"instructions": []map[string]any{
					{"programIdIndex": 0, "accounts": accounts},
				},
			},
		},
	}
	out, _ := json.Marshal(tx)
	return string(out)
}

func rpcServer(t *testing.T, result string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
	}))
}

func TestResolveCandidate(t *testing.T) {
	srv := rpcServer(t, initTxResult("newToken", wrappedSOLMint))
	defer srv.Close()

	l := NewPoolListener("ws://unused", solana.NewRPCClient(srv.URL, ""), nil, discardLogger())
	cand, err := l.resolveCandidate(context.Background(), "sig123")
	if err != nil {
		t.Fatalf("resolveCandidate: %v", err)
	}
	if cand.BaseMint != "newToken" || cand.QuoteMint != wrappedSOLMint {
		t.Errorf("mints = %s/%s", cand.BaseMint, cand.QuoteMint)
	}
	if cand.PoolAddress != "poolAddr" || cand.LpMint != "lpMintAddr" {
		t.Errorf("pool/lp = %s/%s", cand.PoolAddress, cand.LpMint)
	}
	if cand.BaseVault != "coinVault" || cand.QuoteVault != "pcVault" {
		t.Errorf("vaults = %s/%s", cand.BaseVault, cand.QuoteVault)
	}
	if cand.TxSignature != "sig123" || cand.DetectedAt.IsZero() {
		t.Errorf("signature/timestamp = %s/%v", cand.TxSignature, cand.DetectedAt)
	}
}

func TestResolveCandidateNormalizesSOLSide(t *testing.T) {
	// Raydium put wrapped SOL on the coin side; base must flip to the token.
	srv := rpcServer(t, initTxResult(wrappedSOLMint, "newToken"))
	defer srv.Close()

	l := NewPoolListener("ws://unused", solana.NewRPCClient(srv.URL, ""), nil, discardLogger())
	cand, err := l.resolveCandidate(context.Background(), "sig123")
	if err != nil {
		t.Fatalf("resolveCandidate: %v", err)
	}
	if cand.BaseMint != "newToken" || cand.QuoteMint != wrappedSOLMint {
		t.Errorf("mints = %s/%s, want flipped", cand.BaseMint, cand.QuoteMint)
	}
	if cand.BaseVault != "pcVault" || cand.QuoteVault != "coinVault" {
		t.Errorf("vaults = %s/%s, want flipped", cand.BaseVault, cand.QuoteVault)
	}
}

func TestResolveCandidateNoRaydiumInstruction(t *testing.T) {
	srv := rpcServer(t, `{"transaction":{"message":{"accountKeys":["other"],"instructions":[{"programIdIndex":0,"accounts":[]}]}}}`)
	defer srv.Close()

	l := NewPoolListener("ws://unused", solana.NewRPCClient(srv.URL, ""), nil, discardLogger())
	if _, err := l.resolveCandidate(context.Background(), "sig123"); err == nil {
		t.Fatal("expected error when no pool initialization is present")
	}
}

func TestHandleMessageDispatchesCandidate(t *testing.T) {
	srv := rpcServer(t, initTxResult("newToken", wrappedSOLMint))
	defer srv.Close()

	got := make(chan domain.PoolCandidate, 1)
	l := NewPoolListener("ws://unused", solana.NewRPCClient(srv.URL, ""), func(ctx context.Context, cand domain.PoolCandidate) {
		got <- cand
	}, discardLogger())

	msg := `{"method":"logsNotification","params":{"result":{"value":{
		"signature":"sig123","err":null,
		"logs":["Program log: Instruction: initialize2"]}}}}`
	l.handleMessage(context.Background(), []byte(msg))

	select {
	case cand := <-got:
		if cand.BaseMint != "newToken" || cand.TxSignature != "sig123" {
			t.Errorf("candidate = %+v", cand)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestHandleMessageIgnoresNoise(t *testing.T) {
	called := false
	l := NewPoolListener("ws://unused", nil, func(ctx context.Context, cand domain.PoolCandidate) {
		called = true
	}, discardLogger())

	messages := []string{
		`{"jsonrpc":"2.0","id":1,"result":42}`, // subscription ack
		`not json`,
		`{"method":"logsNotification","params":{"result":{"value":{
			"signature":"s","err":{"InstructionError":[0,"Custom"]},
			"logs":["Program log: Instruction: initialize2"]}}}}`, // failed tx
		`{"method":"logsNotification","params":{"result":{"value":{
			"signature":"s","err":null,"logs":["Program log: Instruction: Swap"]}}}}`, // not an init
	}
	for _, msg := range messages {
		l.handleMessage(context.Background(), []byte(msg))
	}
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Error("handler invoked for a non-init message")
	}
}
