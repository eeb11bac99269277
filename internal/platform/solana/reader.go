package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/ryabkov/solsniper/internal/domain"
)

// SPL token program IDs. The owner of a mint account tells the two standards
// apart.
const (
	tokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// splMintLen is the fixed prefix of an SPL mint account. Token-2022 mints
// append extensions after it.
const splMintLen = 82

// Reader implements the on-chain reads: mint state, metadata, balances,
// supply, and holder distribution.
type Reader struct {
	rpc *RPCClient
}

// NewReader creates a Reader over the given RPC client.
func NewReader(rpc *RPCClient) *Reader {
	return &Reader{rpc: rpc}
}

type accountInfoResult struct {
	Value *struct {
		Data  []string `json:"data"`
		Owner string   `json:"owner"`
	} `json:"value"`
}

// MintInfo reads and decodes the SPL mint account. The mint and freeze
// authority flags drive the rug-safety checks.
func (r *Reader) MintInfo(ctx context.Context, mint string) (domain.MintInfo, error) {
	var res accountInfoResult
	params := []any{mint, map[string]any{"encoding": "base64", "commitment": r.rpc.commitment}}
	if err := r.rpc.Call(ctx, "getAccountInfo", params, &res); err != nil {
		return domain.MintInfo{}, err
	}
	if res.Value == nil || len(res.Value.Data) == 0 {
		return domain.MintInfo{}, fmt.Errorf("solana: mint %s: %w", mint, domain.ErrNotFound)
	}

	raw, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
	if err != nil {
		return domain.MintInfo{}, fmt.Errorf("solana: decode mint account %s: %w", mint, err)
	}
	if len(raw) < splMintLen {
		return domain.MintInfo{}, fmt.Errorf("solana: mint account %s too short: %d bytes", mint, len(raw))
	}

	// Layout: u32 mintAuthorityOption, 32B mintAuthority, u64 supply,
	// u8 decimals, u8 isInitialized, u32 freezeAuthorityOption, 32B
	// freezeAuthority.
	mintAuthOpt := binary.LittleEndian.Uint32(raw[0:4])
	supply := binary.LittleEndian.Uint64(raw[36:44])
	decimals := int(raw[44])
	freezeAuthOpt := binary.LittleEndian.Uint32(raw[46:50])

	div := 1.0
	for i := 0; i < decimals; i++ {
		div *= 10
	}
	return domain.MintInfo{
		HasMintAuthority:   mintAuthOpt != 0,
		HasFreezeAuthority: freezeAuthOpt != 0,
		Supply:             float64(supply) / div,
		Decimals:           decimals,
		Token2022:          res.Value.Owner == token2022ProgramID,
	}, nil
}

// TokenMetadata resolves name, symbol, and mutability through the DAS
// getAsset method, which indexing RPC providers expose alongside the core
// API.
func (r *Reader) TokenMetadata(ctx context.Context, mint string) (domain.TokenMetadata, error) {
	var res struct {
		Content *struct {
			Metadata struct {
				Name   string `json:"name"`
				Symbol string `json:"symbol"`
			} `json:"metadata"`
		} `json:"content"`
		Mutable bool `json:"mutable"`
	}
	params := []any{map[string]any{"id": mint}}
	if err := r.rpc.Call(ctx, "getAsset", params, &res); err != nil {
		return domain.TokenMetadata{}, err
	}
	if res.Content == nil {
		return domain.TokenMetadata{}, fmt.Errorf("solana: metadata for %s: %w", mint, domain.ErrNotFound)
	}
	return domain.TokenMetadata{
		Name:    res.Content.Metadata.Name,
		Symbol:  res.Content.Metadata.Symbol,
		Mutable: res.Mutable,
	}, nil
}

// Balance returns the lamport balance of a system account.
func (r *Reader) Balance(ctx context.Context, pubkey string) (uint64, error) {
	var res struct {
		Value uint64 `json:"value"`
	}
	params := []any{pubkey, r.rpc.commitmentOpt()}
	if err := r.rpc.Call(ctx, "getBalance", params, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

type tokenAmountResult struct {
	Value struct {
		Amount   string   `json:"amount"`
		Decimals int      `json:"decimals"`
		UIAmount *float64 `json:"uiAmount"`
	} `json:"value"`
}

// TokenAccountBalance returns the UI balance of a token account (a pool
// vault, typically).
func (r *Reader) TokenAccountBalance(ctx context.Context, account string) (float64, error) {
	var res tokenAmountResult
	params := []any{account, r.rpc.commitmentOpt()}
	if err := r.rpc.Call(ctx, "getTokenAccountBalance", params, &res); err != nil {
		return 0, err
	}
	if res.Value.UIAmount == nil {
		return 0, nil
	}
	return *res.Value.UIAmount, nil
}

// TokenSupply returns the UI total supply of a mint.
func (r *Reader) TokenSupply(ctx context.Context, mint string) (float64, error) {
	var res tokenAmountResult
	params := []any{mint, r.rpc.commitmentOpt()}
	if err := r.rpc.Call(ctx, "getTokenSupply", params, &res); err != nil {
		return 0, err
	}
	if res.Value.UIAmount == nil {
		return 0, nil
	}
	return *res.Value.UIAmount, nil
}

// LargestHolders returns the top token accounts of a mint with each holding
// expressed as a percentage of total supply.
func (r *Reader) LargestHolders(ctx context.Context, mint string) ([]domain.HolderBalance, error) {
	supply, err := r.TokenSupply(ctx, mint)
	if err != nil {
		return nil, err
	}

	var res struct {
		Value []struct {
			Address  string   `json:"address"`
			UIAmount *float64 `json:"uiAmount"`
		} `json:"value"`
	}
	params := []any{mint, r.rpc.commitmentOpt()}
	if err := r.rpc.Call(ctx, "getTokenLargestAccounts", params, &res); err != nil {
		return nil, err
	}

	out := make([]domain.HolderBalance, 0, len(res.Value))
	for _, v := range res.Value {
		var pct float64
		if v.UIAmount != nil && supply > 0 {
			pct = *v.UIAmount / supply * 100
		}
		out = append(out, domain.HolderBalance{Address: v.Address, Pct: pct})
	}
	return out, nil
}
