// Package jupiter is the REST client for the Jupiter aggregator, which
// provides swap routing, quote probing, and token prices.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// Client talks to the Jupiter quote/swap API and the price API.
type Client struct {
	baseURL    string
	priceURL   string
	httpClient *http.Client
}

// New creates a Jupiter client.
//
// baseURL is the quote/swap API root, e.g. "https://quote-api.jup.ag/v6".
// priceURL is the price API root, e.g. "https://api.jup.ag/price/v2".
func New(baseURL, priceURL string) *Client {
	return &Client{
		baseURL:  baseURL,
		priceURL: priceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// quoteResponse is the subset of the Jupiter quote payload the bot reads. The
// raw body is kept intact because the swap endpoint wants it echoed back.
type quoteResponse struct {
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// Quote probes for a route swapping amount base units of inputMint into
// outputMint. A routing failure maps to ErrNoRoute so callers can tell "no
// market yet" from transport errors.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (domain.RouteQuote, error) {
	body, err := c.quoteRaw(ctx, inputMint, outputMint, amount, 0)
	if err != nil {
		return domain.RouteQuote{}, err
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return domain.RouteQuote{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}

	out, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return domain.RouteQuote{}, fmt.Errorf("jupiter: parse outAmount %q: %w", q.OutAmount, err)
	}
	impact, _ := strconv.ParseFloat(q.PriceImpactPct, 64)

	return domain.RouteQuote{OutAmount: out, PriceImpactPct: impact * 100}, nil
}

// QuoteRaw returns the raw quote payload for the given route, ready to be
// passed to BuildSwap.
func (c *Client) QuoteRaw(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error) {
	return c.quoteRaw(ctx, inputMint, outputMint, amount, slippageBps)
}

func (c *Client) quoteRaw(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) ([]byte, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	if slippageBps > 0 {
		params.Set("slippageBps", strconv.Itoa(slippageBps))
	}

	body, err := c.doGet(ctx, c.baseURL+"/quote?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("jupiter: quote %s->%s: %w", inputMint, outputMint, err)
	}

	// Routing errors come back as 200 with an error body.
	var apiErr struct {
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("jupiter: %w: %s", domain.ErrNoRoute, apiErr.Error)
	}

	return body, nil
}

// swapRequest is the body for the swap-transaction endpoint.
type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports,omitempty"`
}

// BuildSwap exchanges a raw quote for a base64-encoded unsigned transaction.
func (c *Client) BuildSwap(ctx context.Context, quote json.RawMessage, userPublicKey string) (string, error) {
	reqBody, err := json.Marshal(swapRequest{
		QuoteResponse:           quote,
		UserPublicKey:           userPublicKey,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	})
	if err != nil {
		return "", fmt.Errorf("jupiter: encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("jupiter: create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("jupiter: swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("jupiter: read swap response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return "", fmt.Errorf("jupiter: swap: %w", err)
	}

	var out struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return "", fmt.Errorf("jupiter: swap response missing transaction")
	}
	return out.SwapTransaction, nil
}

// PriceClient serves spot prices from the Jupiter price API. It is split from
// Client so the monitor can carry its own timeout without touching swap calls.
type PriceClient struct {
	priceURL   string
	httpClient *http.Client
}

// NewPriceClient creates a price-API client.
func NewPriceClient(priceURL string) *PriceClient {
	return &PriceClient{
		priceURL: priceURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// priceResponse mirrors the price API payload: data keyed by mint, price as a
// decimal string in USD unless vsToken overrides it.
type priceResponse struct {
	Data map[string]*struct {
		Price string `json:"price"`
	} `json:"data"`
}

// Quote returns the current price of the mint denominated in SOL. A mint the
// API has no price for maps to ErrPriceUnavailable; the monitor treats that as
// a skipped cycle, not an exit signal.
func (p *PriceClient) Quote(ctx context.Context, mint string) (float64, error) {
	params := url.Values{}
	params.Set("ids", mint)
	params.Set("vsToken", "So11111111111111111111111111111111111111112")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.priceURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("jupiter/price: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("jupiter/price: %w: %v", domain.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("jupiter/price: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("jupiter/price: %w: HTTP %d", domain.ErrPriceUnavailable, resp.StatusCode)
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, fmt.Errorf("jupiter/price: decode response: %w", err)
	}
	entry, ok := pr.Data[mint]
	if !ok || entry == nil || entry.Price == "" {
		return 0, fmt.Errorf("jupiter/price: %w: no price for %s", domain.ErrPriceUnavailable, mint)
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("jupiter/price: parse price %q: %w", entry.Price, err)
	}
	return price, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusBadRequest:
		// The quote endpoint signals unroutable pairs with a 400.
		return fmt.Errorf("%w: %s", domain.ErrNoRoute, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
