package model

import (
	"fmt"
	"time"
)

// Config is the full application configuration. Values are resolved by the
// CLI layer (flags > environment > config file > defaults).
type Config struct {
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Filters    FilterConfig     `yaml:"filters" mapstructure:"filters"`
	Services   ServicesConfig   `yaml:"services" mapstructure:"services"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Telegram   TelegramConfig   `yaml:"telegram" mapstructure:"telegram"`
	Explorers  ExplorersConfig  `yaml:"explorers" mapstructure:"explorers"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
}

// DiscoveryConfig controls the poll loop and candidate selection.
type DiscoveryConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	MaxPairAge         time.Duration `yaml:"max_pair_age" mapstructure:"max_pair_age"`
	TrackedChains      []string      `yaml:"tracked_chains" mapstructure:"tracked_chains"`
	MaxProfilesPerPoll int           `yaml:"max_profiles_per_poll" mapstructure:"max_profiles_per_poll"`
	FairChainSampling  bool          `yaml:"fair_chain_sampling" mapstructure:"fair_chain_sampling"`
	PairConcurrency    int           `yaml:"pair_concurrency" mapstructure:"pair_concurrency"`
}

// FilterConfig toggles the eligibility rules.
type FilterConfig struct {
	RequireTelegram     bool `yaml:"require_telegram" mapstructure:"require_telegram"`
	RequireVisibleAdmin bool `yaml:"require_visible_admin" mapstructure:"require_visible_admin"`
	RejectHiddenAdmins  bool `yaml:"reject_hidden_admins" mapstructure:"reject_hidden_admins"`
	StrictSocials       bool `yaml:"strict_socials" mapstructure:"strict_socials"`
	AllowTestLeads      bool `yaml:"allow_test_leads" mapstructure:"allow_test_leads"`
}

// ServiceLimit is a token-bucket parameter pair for one upstream service.
type ServiceLimit struct {
	Burst  int     `yaml:"burst" mapstructure:"burst"`
	PerSec float64 `yaml:"per_sec" mapstructure:"per_sec"`
}

// ServicesConfig carries the per-service rate-limit parameters.
type ServicesConfig struct {
	DexProfiles ServiceLimit `yaml:"dex_profiles" mapstructure:"dex_profiles"`
	DexPairs    ServiceLimit `yaml:"dex_pairs" mapstructure:"dex_pairs"`
	Social      ServiceLimit `yaml:"social" mapstructure:"social"`
	Explorer    ServiceLimit `yaml:"explorer" mapstructure:"explorer"`
	Telegram    ServiceLimit `yaml:"telegram" mapstructure:"telegram"`
}

// EnrichmentConfig toggles enrichment sources and bounds their runtime.
type EnrichmentConfig struct {
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	AdminExtract   bool          `yaml:"admin_extract" mapstructure:"admin_extract"`
	WalletLookup   bool          `yaml:"wallet_lookup" mapstructure:"wallet_lookup"`
	SocialValidate bool          `yaml:"social_validate" mapstructure:"social_validate"`
}

// TelegramConfig holds bot credentials for notifications.
type TelegramConfig struct {
	BotToken  string `yaml:"bot_token" mapstructure:"bot_token"`
	ChannelID string `yaml:"channel_id" mapstructure:"channel_id"`
}

// ExplorerConfig is one Etherscan-compatible block explorer endpoint.
type ExplorerConfig struct {
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ExplorersConfig maps chains to their contract-creator lookup endpoints.
type ExplorersConfig struct {
	Ethereum  ExplorerConfig `yaml:"ethereum" mapstructure:"ethereum"`
	BSC       ExplorerConfig `yaml:"bsc" mapstructure:"bsc"`
	Base      ExplorerConfig `yaml:"base" mapstructure:"base"`
	SolanaRPC string         `yaml:"solana_rpc" mapstructure:"solana_rpc"`
}

// ByChain returns the explorer endpoint for an EVM chain, if configured.
func (e *ExplorersConfig) ByChain(chain string) (ExplorerConfig, bool) {
	switch chain {
	case "ethereum":
		return e.Ethereum, e.Ethereum.APIURL != ""
	case "bsc":
		return e.BSC, e.BSC.APIURL != ""
	case "base":
		return e.Base, e.Base.APIURL != ""
	}
	return ExplorerConfig{}, false
}

// StoreConfig controls the dedup ledger.
type StoreConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	RecordSkips bool   `yaml:"record_skips" mapstructure:"record_skips"`
}

// HTTPConfig applies to every outbound client.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	HTTPProxy  string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// DefaultConfig returns the built-in defaults. These mirror the public rate
// limits of the upstream services.
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			PollInterval:       30 * time.Second,
			MaxPairAge:         15 * time.Minute,
			TrackedChains:      []string{"ethereum", "bsc", "base", "solana"},
			MaxProfilesPerPoll: 30,
			FairChainSampling:  true,
			PairConcurrency:    8,
		},
		Filters: FilterConfig{
			RequireTelegram:     true,
			RequireVisibleAdmin: true,
			RejectHiddenAdmins:  true,
			StrictSocials:       false,
			AllowTestLeads:      false,
		},
		Services: ServicesConfig{
			DexProfiles: ServiceLimit{Burst: 5, PerSec: 55.0 / 60},
			DexPairs:    ServiceLimit{Burst: 10, PerSec: 250.0 / 60},
			Social:      ServiceLimit{Burst: 5, PerSec: 10},
			Explorer:    ServiceLimit{Burst: 2, PerSec: 4},
			Telegram:    ServiceLimit{Burst: 3, PerSec: 1},
		},
		Enrichment: EnrichmentConfig{
			Timeout:        45 * time.Second,
			AdminExtract:   true,
			WalletLookup:   true,
			SocialValidate: true,
		},
		Explorers: ExplorersConfig{
			Ethereum:  ExplorerConfig{APIURL: "https://api.etherscan.io/api"},
			BSC:       ExplorerConfig{APIURL: "https://api.bscscan.com/api"},
			Base:      ExplorerConfig{APIURL: "https://api.basescan.org/api"},
			SolanaRPC: "https://api.mainnet-beta.solana.com",
		},
		Store: StoreConfig{
			Path:        "data/leads.jsonl",
			RecordSkips: false,
		},
		HTTP: HTTPConfig{
			Timeout:    15 * time.Second,
			UserAgent:  "dexleads/1.0 (+https://github.com/vkuzmenko/dexleads)",
			MaxRetries: 3,
			BaseURL:    "https://api.dexscreener.com",
		},
		LogLevel: "info",
	}
}

// Validate rejects configurations the pipeline cannot safely start with.
func (c *Config) Validate() error {
	if c.Discovery.PollInterval <= 0 {
		return fmt.Errorf("discovery.poll_interval must be positive, got %v", c.Discovery.PollInterval)
	}
	if c.Discovery.MaxPairAge <= 0 {
		return fmt.Errorf("discovery.max_pair_age must be positive, got %v", c.Discovery.MaxPairAge)
	}
	if len(c.Discovery.TrackedChains) == 0 {
		return fmt.Errorf("discovery.tracked_chains must not be empty")
	}
	if c.Discovery.MaxProfilesPerPoll < 1 {
		return fmt.Errorf("discovery.max_profiles_per_poll must be >= 1, got %d", c.Discovery.MaxProfilesPerPoll)
	}
	if c.Discovery.PairConcurrency < 1 {
		return fmt.Errorf("discovery.pair_concurrency must be >= 1, got %d", c.Discovery.PairConcurrency)
	}
	for name, lim := range map[string]ServiceLimit{
		"dex_profiles": c.Services.DexProfiles,
		"dex_pairs":    c.Services.DexPairs,
		"social":       c.Services.Social,
		"explorer":     c.Services.Explorer,
		"telegram":     c.Services.Telegram,
	} {
		if lim.Burst <= 0 || lim.PerSec <= 0 {
			return fmt.Errorf("services.%s: burst and per_sec must be positive (burst=%d per_sec=%g)",
				name, lim.Burst, lim.PerSec)
		}
	}
	if c.Enrichment.Timeout <= 0 {
		return fmt.Errorf("enrichment.timeout must be positive, got %v", c.Enrichment.Timeout)
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be >= 1, got %d", c.HTTP.MaxRetries)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

// IsTracked reports whether the chain is in the configured allowlist.
func (c *Config) IsTracked(chain string) bool {
	for _, tracked := range c.Discovery.TrackedChains {
		if tracked == chain {
			return true
		}
	}
	return false
}
