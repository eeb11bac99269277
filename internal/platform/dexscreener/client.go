// Package dexscreener is the REST client for the DexScreener token API, used
// as the off-chain aggregator for logos and social links.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// Client talks to the DexScreener latest/dex API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a DexScreener client.
//
// baseURL is the API root, e.g. "https://api.dexscreener.com".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiPair is the subset of a DexScreener pair the bot reads.
type apiPair struct {
	Info *struct {
		ImageURL string `json:"imageUrl"`
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

// Profile returns the indexed profile for a mint. Tokens DexScreener has not
// indexed yet map to ErrNotFound; the social filter stage polls on that.
func (c *Client) Profile(ctx context.Context, mint string) (domain.TokenProfile, error) {
	path := fmt.Sprintf("/latest/dex/tokens/%s", url.PathEscape(mint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: %w: %s", domain.ErrNotFound, mint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: HTTP %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Pairs []apiPair `json:"pairs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: decode response: %w", err)
	}
	// A 200 with a null pairs array means the token is not indexed yet.
	if len(payload.Pairs) == 0 {
		return domain.TokenProfile{}, fmt.Errorf("dexscreener: %w: %s", domain.ErrNotFound, mint)
	}

	var profile domain.TokenProfile
	for i := range payload.Pairs {
		info := payload.Pairs[i].Info
		if info == nil {
			continue
		}
		if info.ImageURL != "" {
			profile.LogoPresent = true
		}
		for _, s := range info.Socials {
			if s.URL != "" {
				profile.Socials = append(profile.Socials, s.URL)
			}
		}
		for _, w := range info.Websites {
			if w.URL != "" {
				profile.Socials = append(profile.Socials, w.URL)
			}
		}
	}
	return profile, nil
}
