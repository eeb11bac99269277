// Package solana is the JSON-RPC client for a Solana node plus the on-chain
// reader and the swap executor built on top of it.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RPCClient is a minimal Solana JSON-RPC client. Each call is a single POST;
// the node handles batching and retries are left to callers.
type RPCClient struct {
	url        string
	commitment string
	httpClient *http.Client
}

// NewRPCClient creates an RPC client for the given HTTP endpoint.
// commitment defaults to "confirmed".
func NewRPCClient(url, commitment string) *RPCClient {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &RPCClient{
		url:        url,
		commitment: commitment,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call performs one JSON-RPC call and decodes result into out.
func (c *RPCClient) Call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana: encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("solana: read %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solana: %s: HTTP %d: %s", method, resp.StatusCode, body)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("solana: decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("solana: %s: %w", method, envelope.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("solana: decode %s result: %w", method, err)
	}
	return nil
}

// commitmentOpt is the common commitment option object.
func (c *RPCClient) commitmentOpt() map[string]any {
	return map[string]any{"commitment": c.commitment}
}
