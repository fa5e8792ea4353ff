package model

import (
	"strings"
	"time"
)

// PairKey builds the dedup key for a pair identifier. Addresses are
// case-insensitive on EVM chains, so the key is always lowercased.
func PairKey(chain, tokenAddress string) string {
	return strings.ToLower(chain) + ":" + strings.ToLower(tokenAddress)
}

// Candidate is a token profile observed during one poll cycle, before any
// enrichment. Candidates are ephemeral and discarded after triage.
type Candidate struct {
	Chain        string    `json:"chain"`
	TokenAddress string    `json:"token_address"`
	Description  string    `json:"description,omitempty"`
	Links        []Link    `json:"links,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Link is a raw social/website link attached to a token profile.
type Link struct {
	Type  string `json:"type,omitempty"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// PairRecord is the enriched view of a candidate after the pair-detail fetch.
// Immutable once constructed; owned by a single pipeline run.
type PairRecord struct {
	Chain         string    `json:"chain"`
	TokenName     string    `json:"token_name"`
	TokenSymbol   string    `json:"token_symbol"`
	TokenAddress  string    `json:"token_address"`
	PairAddress   string    `json:"pair_address"`
	DexID         string    `json:"dex_id,omitempty"`
	URL           string    `json:"url"`
	PairCreatedAt time.Time `json:"pair_created_at"`
	LiquidityUSD  float64   `json:"liquidity_usd,omitempty"`
	FDV           float64   `json:"fdv,omitempty"`
}

// Key returns the dedup key for the pair: chain plus lowercased token address.
func (p *PairRecord) Key() string {
	return PairKey(p.Chain, p.TokenAddress)
}

// Age returns how old the pair is relative to now.
func (p *PairRecord) Age(now time.Time) time.Duration {
	return now.Sub(p.PairCreatedAt)
}

// SocialLinks holds the extracted social links for a token. Empty strings
// mean the link was not found; that is a valid outcome, not an error.
type SocialLinks struct {
	Telegram string `json:"telegram,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Website  string `json:"website,omitempty"`
}

// TelegramAdmin is a visible admin of a Telegram group.
type TelegramAdmin struct {
	Username  string `json:"username"`
	IsCreator bool   `json:"is_creator,omitempty"`
}

// AdminStatus distinguishes "the admin source never ran" from "it ran and
// resolved admins" and "it ran but the admin list is hidden". The hidden-admin
// filter rule only fires on AdminHidden, never on AdminNotRun.
type AdminStatus string

const (
	AdminNotRun   AdminStatus = "not_run"
	AdminResolved AdminStatus = "resolved"
	AdminHidden   AdminStatus = "hidden"
)

// AdminResult is the outcome of the Telegram admin enrichment source.
type AdminResult struct {
	Status           AdminStatus     `json:"status"`
	Admins           []TelegramAdmin `json:"admins,omitempty"`
	GroupTitle       string          `json:"group_title,omitempty"`
	GroupDescription string          `json:"group_description,omitempty"`
	PinnedText       string          `json:"pinned_text,omitempty"`
}

// EnrichmentResult aggregates the optional per-pair enrichment fields. Each
// field is independently optional; Degraded lists the sources that failed
// (as opposed to being disabled or finding nothing).
type EnrichmentResult struct {
	Socials  SocialLinks `json:"socials"`
	Admin    AdminResult `json:"admin"`
	Deployer string      `json:"deployer,omitempty"`
	Degraded []string    `json:"degraded,omitempty"`
}

// Lead is the structured notification payload handed to the notifier for a
// qualifying pair.
type Lead struct {
	Chain         string          `json:"chain"`
	TokenName     string          `json:"token_name"`
	TokenSymbol   string          `json:"token_symbol"`
	TokenAddress  string          `json:"token_address"`
	PairAddress   string          `json:"pair_address"`
	URL           string          `json:"url"`
	PairCreatedAt time.Time       `json:"pair_created_at"`
	Telegram      string          `json:"telegram,omitempty"`
	Twitter       string          `json:"twitter,omitempty"`
	Website       string          `json:"website,omitempty"`
	Admins        []TelegramAdmin `json:"admins"`
	AdminsHidden  bool            `json:"admins_hidden"`
	Deployer      string          `json:"deployer,omitempty"`
	DiscoveredAt  time.Time       `json:"discovered_at"`
}

// NewLead assembles the notification payload from a pair and its enrichment.
func NewLead(pair *PairRecord, enr *EnrichmentResult, now time.Time) *Lead {
	return &Lead{
		Chain:         pair.Chain,
		TokenName:     pair.TokenName,
		TokenSymbol:   pair.TokenSymbol,
		TokenAddress:  pair.TokenAddress,
		PairAddress:   pair.PairAddress,
		URL:           pair.URL,
		PairCreatedAt: pair.PairCreatedAt,
		Telegram:      enr.Socials.Telegram,
		Twitter:       enr.Socials.Twitter,
		Website:       enr.Socials.Website,
		Admins:        enr.Admin.Admins,
		AdminsHidden:  enr.Admin.Status == AdminHidden,
		Deployer:      enr.Deployer,
		DiscoveredAt:  now,
	}
}
