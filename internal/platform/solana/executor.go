package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

const solMint = "So11111111111111111111111111111111111111112"

const (
	confirmPollInterval = 2 * time.Second
	confirmTimeout      = 60 * time.Second
)

// SwapAPI is the slice of the Jupiter client the executor needs.
type SwapAPI interface {
	QuoteRaw(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error)
	BuildSwap(ctx context.Context, quote json.RawMessage, userPublicKey string) (string, error)
}

// Executor performs swaps: quote, build, sign, send, confirm. Expected
// trading failures (no route, preflight rejection, on-chain failure,
// confirmation timeout) come back as an unconfirmed SwapResult so the retry
// loop can act on them; only infrastructure faults surface as errors.
type Executor struct {
	rpc    *RPCClient
	swaps  SwapAPI
	reader *Reader
	wallet *Wallet
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(rpc *RPCClient, swaps SwapAPI, reader *Reader, wallet *Wallet, logger *slog.Logger) *Executor {
	return &Executor{
		rpc:    rpc,
		swaps:  swaps,
		reader: reader,
		wallet: wallet,
		logger: logger.With(slog.String("component", "swap_executor")),
	}
}

// Execute runs one complete swap attempt with a fresh quote and blockhash.
func (e *Executor) Execute(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	tokenMint := req.OutputMint
	if req.Side == domain.SwapSideSell {
		tokenMint = req.InputMint
	}
	info, err := e.reader.MintInfo(ctx, tokenMint)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("solana: executor: mint info: %w", err)
	}

	quote, err := e.swaps.QuoteRaw(ctx, req.InputMint, req.OutputMint, req.Amount, req.SlippageBps)
	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			return domain.SwapResult{Message: err.Error()}, nil
		}
		return domain.SwapResult{}, err
	}
	var parsed struct {
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(quote, &parsed); err != nil {
		return domain.SwapResult{}, fmt.Errorf("solana: executor: decode quote: %w", err)
	}
	outRaw, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("solana: executor: parse outAmount: %w", err)
	}

	txB64, err := e.swaps.BuildSwap(ctx, quote, e.wallet.PublicKey)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("solana: executor: build swap: %w", err)
	}
	signed, err := signTransaction(txB64, e.wallet)
	if err != nil {
		return domain.SwapResult{}, err
	}

	sig, err := e.send(ctx, signed)
	if err != nil {
		// Preflight rejections (slippage exceeded, stale pool state) are a
		// normal per-attempt outcome.
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return domain.SwapResult{Message: rpcErr.Message}, nil
		}
		return domain.SwapResult{}, err
	}

	if msg, ok := e.confirm(ctx, sig); !ok {
		return domain.SwapResult{Signature: sig, Message: msg}, nil
	}

	price, outUI := swapPrice(req, outRaw, info.Decimals)
	e.logger.Info("swap confirmed",
		slog.String("side", string(req.Side)),
		slog.String("signature", sig),
		slog.Float64("price", price),
		slog.Float64("out_amount", outUI),
	)
	return domain.SwapResult{
		Confirmed: true,
		Signature: sig,
		Price:     price,
		OutAmount: outUI,
	}, nil
}

// send submits the signed transaction and returns its signature.
func (e *Executor) send(ctx context.Context, signedB64 string) (string, error) {
	var sig string
	params := []any{signedB64, map[string]any{
		"encoding":            "base64",
		"preflightCommitment": e.rpc.commitment,
		"maxRetries":          3,
	}}
	if err := e.rpc.Call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// confirm polls signature status until the transaction is confirmed, fails on
// chain, or the timeout elapses.
func (e *Executor) confirm(ctx context.Context, sig string) (string, bool) {
	deadline := time.Now().Add(confirmTimeout)
	for {
		var res struct {
			Value []*struct {
				ConfirmationStatus string          `json:"confirmationStatus"`
				Err                json.RawMessage `json:"err"`
			} `json:"value"`
		}
		err := e.rpc.Call(ctx, "getSignatureStatuses", []any{[]string{sig}}, &res)
		if err != nil {
			e.logger.Warn("signature status poll failed", slog.String("error", err.Error()))
		} else if len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if len(st.Err) > 0 && string(st.Err) != "null" {
				return fmt.Sprintf("transaction failed on chain: %s", st.Err), false
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return "", true
			}
		}

		if time.Now().Add(confirmPollInterval).After(deadline) {
			return "confirmation timeout", false
		}
		select {
		case <-ctx.Done():
			return "cancelled while confirming", false
		case <-time.After(confirmPollInterval):
		}
	}
}

// swapPrice derives the fill price in SOL per token and the UI output amount
// from the quoted raw output.
func swapPrice(req domain.SwapRequest, outRaw uint64, tokenDecimals int) (price, outUI float64) {
	tokenDiv := math.Pow10(tokenDecimals)
	if req.Side == domain.SwapSideBuy {
		outUI = float64(outRaw) / tokenDiv
		solIn := float64(req.Amount) / 1e9
		if outUI > 0 {
			price = solIn / outUI
		}
		return price, outUI
	}
	outUI = float64(outRaw) / 1e9
	tokensIn := float64(req.Amount) / tokenDiv
	if tokensIn > 0 {
		price = outUI / tokensIn
	}
	return price, outUI
}
