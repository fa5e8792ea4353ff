package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPairKeyLowercases(t *testing.T) {
	key := PairKey("Ethereum", "0xAbCd000000000000000000000000000000000001")
	require.Equal(t, "ethereum:0xabcd000000000000000000000000000000000001", key)
	require.Equal(t, key, PairKey("ethereum", "0xabcd000000000000000000000000000000000001"))
}

func TestPairRecordAge(t *testing.T) {
	created := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	pair := &PairRecord{PairCreatedAt: created}
	require.Equal(t, 10*time.Minute, pair.Age(created.Add(10*time.Minute)))
}

func TestNewLeadCarriesEnrichment(t *testing.T) {
	now := time.Now().UTC()
	pair := &PairRecord{
		Chain:        "bsc",
		TokenSymbol:  "TKN",
		TokenAddress: "0x1",
	}
	enr := &EnrichmentResult{
		Socials:  SocialLinks{Telegram: "https://t.me/grp", Website: "grp.io"},
		Admin:    AdminResult{Status: AdminHidden},
		Deployer: "0xdeployer",
	}

	lead := NewLead(pair, enr, now)
	require.Equal(t, "https://t.me/grp", lead.Telegram)
	require.Equal(t, "grp.io", lead.Website)
	require.True(t, lead.AdminsHidden)
	require.Equal(t, "0xdeployer", lead.Deployer)
	require.Equal(t, now, lead.DiscoveredAt)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Discovery.PollInterval = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Services.DexPairs.Burst = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Discovery.TrackedChains = nil
	require.Error(t, cfg.Validate())
}

func TestIsTracked(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.IsTracked("ethereum"))
	require.False(t, cfg.IsTracked("dogechain"))
}
