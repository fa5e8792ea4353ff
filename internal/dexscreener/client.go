// Package dexscreener wraps the Dexscreener public API: the latest
// token-profiles feed and the pair-detail endpoints.
package dexscreener

import (
	"context"
	"fmt"
	"time"

	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/model"
)

// Rate-limit buckets. Dexscreener limits the profiles feed and the pair
// endpoints independently, so they get separate buckets.
const (
	ServiceProfiles = "dex_profiles"
	ServicePairs    = "dex_pairs"
)

// profileJSON is one record of /token-profiles/latest/v1.
type profileJSON struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Description  string `json:"description"`
	Links        []struct {
		Type  string `json:"type"`
		Label string `json:"label"`
		URL   string `json:"url"`
	} `json:"links"`
}

// pairJSON is one record of /token-pairs/v1/{chain}/{token} and
// /latest/dex/pairs/{chain}/{pair}.
type pairJSON struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	URL         string `json:"url"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // unix millis
	Liquidity     struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV  float64 `json:"fdv"`
	Info struct {
		Socials []struct {
			Platform string `json:"platform"`
			Type     string `json:"type"`
			Handle   string `json:"handle"`
			URL      string `json:"url"`
		} `json:"socials"`
		Websites []struct {
			Label string `json:"label"`
			URL   string `json:"url"`
		} `json:"websites"`
	} `json:"info"`
}

// Client is the Dexscreener API client.
type Client struct {
	base    string
	fetcher *fetch.Client
}

// NewClient creates a client against the given base URL (the production API
// or a test server).
func NewClient(baseURL string, fetcher *fetch.Client) *Client {
	return &Client{base: baseURL, fetcher: fetcher}
}

// LatestProfiles returns the most recently updated token profiles as
// candidates, unfiltered.
func (c *Client) LatestProfiles(ctx context.Context) ([]model.Candidate, error) {
	var profiles []profileJSON
	url := c.base + "/token-profiles/latest/v1"
	if err := c.fetcher.GetJSON(ctx, ServiceProfiles, url, &profiles); err != nil {
		return nil, fmt.Errorf("latest profiles: %w", err)
	}

	now := time.Now().UTC()
	candidates := make([]model.Candidate, 0, len(profiles))
	for _, p := range profiles {
		if p.TokenAddress == "" {
			continue
		}
		cand := model.Candidate{
			Chain:        normalizeChain(p.ChainID),
			TokenAddress: p.TokenAddress,
			Description:  p.Description,
			ObservedAt:   now,
		}
		for _, l := range p.Links {
			cand.Links = append(cand.Links, model.Link{Type: l.Type, Label: l.Label, URL: l.URL})
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// PairDetails fetches the pairs for a token and returns the primary pair as
// a PairRecord plus the social links merged from the profile and pair data.
// A token with no parseable primary pair returns (nil, links, nil).
func (c *Client) PairDetails(ctx context.Context, cand model.Candidate) (*model.PairRecord, model.SocialLinks, error) {
	var pairs []pairJSON
	url := fmt.Sprintf("%s/token-pairs/v1/%s/%s", c.base, cand.Chain, cand.TokenAddress)
	if err := c.fetcher.GetJSON(ctx, ServicePairs, url, &pairs); err != nil {
		return nil, model.SocialLinks{}, fmt.Errorf("pair details %s/%s: %w", cand.Chain, cand.TokenAddress, err)
	}
	if len(pairs) == 0 {
		return nil, model.SocialLinks{}, nil
	}

	primary := pairs[0]
	record := parsePair(&primary, cand.Chain)
	links := extractSocials(&cand, &primary)
	return record, links, nil
}

// PairByAddress fetches a single pair keyed by pair address.
func (c *Client) PairByAddress(ctx context.Context, chain, pairAddress string) (*model.PairRecord, error) {
	var resp struct {
		Pairs []pairJSON `json:"pairs"`
	}
	url := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", c.base, chain, pairAddress)
	if err := c.fetcher.GetJSON(ctx, ServicePairs, url, &resp); err != nil {
		return nil, fmt.Errorf("pair %s/%s: %w", chain, pairAddress, err)
	}
	if len(resp.Pairs) == 0 {
		return nil, nil
	}
	return parsePair(&resp.Pairs[0], chain), nil
}
