package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ryabkov/solsniper/internal/domain"
)

// rpcServer answers JSON-RPC calls per method from the results map. Values are
// raw JSON for the "result" field.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found: %s"}}`, req.Method)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
	}))
}

// mintAccount serializes an SPL mint account prefix.
func mintAccount(mintAuth, freezeAuth bool, supply uint64, decimals byte) string {
	raw := make([]byte, splMintLen)
	if mintAuth {
		binary.LittleEndian.PutUint32(raw[0:4], 1)
	}
	binary.LittleEndian.PutUint64(raw[36:44], supply)
	raw[44] = decimals
	raw[45] = 1 // initialized
	if freezeAuth {
		binary.LittleEndian.PutUint32(raw[46:50], 1)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestReaderMintInfo(t *testing.T) {
	data := mintAccount(true, false, 1_000_000_000_000, 6)
	srv := rpcServer(t, map[string]string{
		"getAccountInfo": fmt.Sprintf(`{"value":{"data":["%s","base64"],"owner":"%s"}}`, data, tokenProgramID),
	})
	defer srv.Close()

	r := NewReader(NewRPCClient(srv.URL, ""))
	info, err := r.MintInfo(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("MintInfo: %v", err)
	}
	if !info.HasMintAuthority || info.HasFreezeAuthority {
		t.Errorf("authorities = %v/%v, want true/false", info.HasMintAuthority, info.HasFreezeAuthority)
	}
	if info.Decimals != 6 {
		t.Errorf("Decimals = %d", info.Decimals)
	}
	if info.Supply != 1_000_000 { // 1e12 raw at 6 decimals
		t.Errorf("Supply = %f", info.Supply)
	}
	if info.Token2022 {
		t.Error("Token2022 = true for a legacy mint")
	}
}

func TestReaderMintInfoToken2022(t *testing.T) {
	data := mintAccount(false, true, 100, 0)
	srv := rpcServer(t, map[string]string{
		"getAccountInfo": fmt.Sprintf(`{"value":{"data":["%s","base64"],"owner":"%s"}}`, data, token2022ProgramID),
	})
	defer srv.Close()

	r := NewReader(NewRPCClient(srv.URL, ""))
	info, err := r.MintInfo(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("MintInfo: %v", err)
	}
	if !info.Token2022 || !info.HasFreezeAuthority {
		t.Errorf("info = %+v", info)
	}
}

func TestReaderMintInfoMissingAccount(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getAccountInfo": `{"value":null}`,
	})
	defer srv.Close()

	r := NewReader(NewRPCClient(srv.URL, ""))
	if _, err := r.MintInfo(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReaderTokenMetadata(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getAsset": `{"content":{"metadata":{"name":"Token A","symbol":"TOKA"}},"mutable":true}`,
	})
	defer srv.Close()

	r := NewReader(NewRPCClient(srv.URL, ""))
	meta, err := r.TokenMetadata(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("TokenMetadata: %v", err)
	}
	if meta.Name != "Token A" || meta.Symbol != "TOKA" || !meta.Mutable {
		t.Errorf("meta = %+v", meta)
	}
}

func TestReaderBalance(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":2500000000}`,
	})
	defer srv.Close()

	r := NewReader(NewRPCClient(srv.URL, ""))
	lamports, err := r.Balance(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if lamports != 2_500_000_000 {
		t.Errorf("lamports = %d", lamports)
	}
}

func TestReaderLargestHolders(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getTokenSupply": `{"value":{"amount":"1000","decimals":0,"uiAmount":1000.0}}`,
		"getTokenLargestAccounts": `{"value":[
			{"address":"vault","uiAmount":800.0},
			{"address":"whale","uiAmount":150.0},
			{"address":"empty","uiAmount":null}
		]}`,
	})
	defer srv.Close()

	r := NewReader(NewRPCClient(srv.URL, ""))
	holders, err := r.LargestHolders(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("LargestHolders: %v", err)
	}
	if len(holders) != 3 {
		t.Fatalf("got %d holders", len(holders))
	}
	if holders[0].Pct != 80 || holders[1].Pct != 15 || holders[2].Pct != 0 {
		t.Errorf("pcts = %f/%f/%f", holders[0].Pct, holders[1].Pct, holders[2].Pct)
	}
}

func TestRPCClientErrorEnvelope(t *testing.T) {
	srv := rpcServer(t, map[string]string{})
	defer srv.Close()

	c := NewRPCClient(srv.URL, "")
	err := c.Call(context.Background(), "unknownMethod", nil, nil)
	if err == nil {
		t.Fatal("expected rpc error")
	}
	var rpcErr *rpcError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want wrapped *rpcError", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("code = %d", rpcErr.Code)
	}
}
