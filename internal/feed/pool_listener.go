// Package feed watches the chain for pool-creation events and turns them into
// candidates for the sniper.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ryabkov/solsniper/internal/domain"
	"github.com/ryabkov/solsniper/internal/platform/solana"
)

// RaydiumAMMProgram is the Raydium AMM v4 program whose logs announce new
// pools.
const RaydiumAMMProgram = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

const wrappedSOLMint = "So11111111111111111111111111111111111111112"

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before reconnecting.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff.
	maxReconnectDelay = 60 * time.Second
)

// initialize2 account table positions in the Raydium AMM v4 instruction.
const (
	idxAmm       = 4
	idxLpMint    = 7
	idxCoinMint  = 8
	idxPcMint    = 9
	idxCoinVault = 10
	idxPcVault   = 11
)

// PoolHandler receives each detected pool candidate.
type PoolHandler func(ctx context.Context, cand domain.PoolCandidate)

// PoolListener subscribes to Raydium AMM program logs over the RPC WebSocket
// and resolves each pool-initialization signature into a PoolCandidate via
// the HTTP RPC. It reconnects with backoff on disconnect.
type PoolListener struct {
	wsURL   string
	rpc     *solana.RPCClient
	handler PoolHandler
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewPoolListener creates a listener that invokes handler for every new pool.
func NewPoolListener(wsURL string, rpc *solana.RPCClient, handler PoolHandler, logger *slog.Logger) *PoolListener {
	return &PoolListener{
		wsURL:   wsURL,
		rpc:     rpc,
		handler: handler,
		logger:  logger.With(slog.String("component", "pool_listener")),
		done:    make(chan struct{}),
	}
}

// Run connects and listens until ctx is cancelled or Close is called.
// Disconnects trigger reconnection with exponential backoff; a resubscribe is
// issued on every new connection.
func (l *PoolListener) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		default:
		}

		err := l.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.logger.Warn("log subscription dropped, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the listener.
func (l *PoolListener) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
		}
		l.mu.Unlock()
	})
}

func (l *PoolListener) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: %w: connect: %v", domain.ErrWSDisconnect, err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{RaydiumAMMProgram}},
			map[string]any{"commitment": "confirmed"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	l.logger.Info("subscribed to pool-creation logs", slog.String("program", RaydiumAMMProgram))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go l.pingLoop(ctx, conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: %w: read: %v", domain.ErrWSDisconnect, err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		l.handleMessage(ctx, msg)
	}
}

func (l *PoolListener) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// logsNotification is the logsSubscribe push payload.
type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string          `json:"signature"`
				Err       json.RawMessage `json:"err"`
				Logs      []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (l *PoolListener) handleMessage(ctx context.Context, msg []byte) {
	var note logsNotification
	if err := json.Unmarshal(msg, &note); err != nil || note.Method != "logsNotification" {
		return
	}
	val := note.Params.Result.Value
	if len(val.Err) > 0 && string(val.Err) != "null" {
		return
	}
	if !isPoolInit(val.Logs) {
		return
	}

	l.logger.Info("pool initialization detected", slog.String("signature", val.Signature))

	// Resolution needs an extra RPC round trip; run it off the read loop so a
	// slow node cannot stall the subscription.
	go func() {
		rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		cand, err := l.resolveCandidate(rctx, val.Signature)
		if err != nil {
			l.logger.Warn("candidate resolution failed",
				slog.String("signature", val.Signature),
				slog.String("error", err.Error()),
			)
			return
		}
		l.handler(ctx, cand)
	}()
}

// isPoolInit reports whether the log lines carry a Raydium initialize2
// invocation.
func isPoolInit(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "initialize2") || strings.Contains(line, "init_pc_amount") {
			return true
		}
	}
	return false
}

// resolveCandidate fetches the transaction and maps the initialize2 account
// table into a PoolCandidate. The base mint is normalized to the non-SOL side
// of the pool.
func (l *PoolListener) resolveCandidate(ctx context.Context, sig string) (domain.PoolCandidate, error) {
	var tx struct {
		Transaction struct {
			Message struct {
				AccountKeys []string `json:"accountKeys"`
				Instructions []struct {
					ProgramIDIndex int   `json:"programIdIndex"`
					Accounts       []int `json:"accounts"`
				} `json:"instructions"`
			} `json:"message"`
		} `json:"transaction"`
	}
	params := []any{sig, map[string]any{
		"encoding":                       "json",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	}}
	if err := l.rpc.Call(ctx, "getTransaction", params, &tx); err != nil {
		return domain.PoolCandidate{}, err
	}

	keys := tx.Transaction.Message.AccountKeys
	for _, ins := range tx.Transaction.Message.Instructions {
		if ins.ProgramIDIndex >= len(keys) || keys[ins.ProgramIDIndex] != RaydiumAMMProgram {
			continue
		}
		if len(ins.Accounts) <= idxPcVault {
			continue
		}
		at := func(i int) string {
			if ins.Accounts[i] < len(keys) {
				return keys[ins.Accounts[i]]
			}
			return ""
		}
		cand := domain.PoolCandidate{
			PoolAddress: at(idxAmm),
			LpMint:      at(idxLpMint),
			BaseMint:    at(idxCoinMint),
			QuoteMint:   at(idxPcMint),
			BaseVault:   at(idxCoinVault),
			QuoteVault:  at(idxPcVault),
			TxSignature: sig,
			DetectedAt:  time.Now().UTC(),
		}
		// Raydium orders coin/pc arbitrarily; the new token is whichever side
		// is not wrapped SOL.
		if cand.BaseMint == wrappedSOLMint {
			cand.BaseMint, cand.QuoteMint = cand.QuoteMint, cand.BaseMint
			cand.BaseVault, cand.QuoteVault = cand.QuoteVault, cand.BaseVault
		}
		if cand.BaseMint == "" || cand.PoolAddress == "" {
			continue
		}
		return cand, nil
	}
	return domain.PoolCandidate{}, fmt.Errorf("feed: no pool initialization in %s: %w", sig, domain.ErrNotFound)
}
