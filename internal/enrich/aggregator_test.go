package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkuzmenko/dexleads/internal/model"
)

type fakeSource struct {
	name    string
	enabled bool
	partial Partial
	err     error
	delay   time.Duration
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return f.enabled }

func (f *fakeSource) Resolve(ctx context.Context, _ *model.PairRecord, _ model.SocialLinks) (Partial, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return Partial{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.partial, f.err
}

func testPair() *model.PairRecord {
	return &model.PairRecord{
		Chain:        "ethereum",
		TokenAddress: "0x1111111111111111111111111111111111111111",
		TokenSymbol:  "TKN",
	}
}

func TestEnrichMergesPartials(t *testing.T) {
	agg := NewAggregator(time.Second,
		&fakeSource{name: "social", enabled: true, partial: Partial{
			Socials: &model.SocialLinks{Telegram: "https://t.me/grp", Website: "grp.io"},
		}},
		&fakeSource{name: "admin", enabled: true, partial: Partial{
			Admin: &model.AdminResult{
				Status: model.AdminResolved,
				Admins: []model.TelegramAdmin{{Username: "founder", IsCreator: true}},
			},
		}},
		&fakeSource{name: "wallet", enabled: true, partial: Partial{Deployer: "0xdeployer"}},
	)

	result := agg.Enrich(context.Background(), testPair(), model.SocialLinks{Telegram: "https://t.me/grp"})
	require.Empty(t, result.Degraded)
	require.Equal(t, "https://t.me/grp", result.Socials.Telegram)
	require.Equal(t, "grp.io", result.Socials.Website)
	require.Equal(t, model.AdminResolved, result.Admin.Status)
	require.Equal(t, "0xdeployer", result.Deployer)
}

func TestEnrichDegradesFailingSource(t *testing.T) {
	agg := NewAggregator(time.Second,
		&fakeSource{name: "social", enabled: true, partial: Partial{
			Socials: &model.SocialLinks{Telegram: "https://t.me/grp"},
		}},
		&fakeSource{name: "wallet", enabled: true, err: errors.New("explorer down")},
	)

	result := agg.Enrich(context.Background(), testPair(), model.SocialLinks{})
	require.Equal(t, []string{"wallet"}, result.Degraded)
	require.Empty(t, result.Deployer)
	require.Equal(t, "https://t.me/grp", result.Socials.Telegram)
}

func TestEnrichSkipsDisabledSource(t *testing.T) {
	agg := NewAggregator(time.Second,
		&fakeSource{name: "admin", enabled: false, partial: Partial{
			Admin: &model.AdminResult{Status: model.AdminResolved},
		}},
	)

	result := agg.Enrich(context.Background(), testPair(), model.SocialLinks{})
	require.Empty(t, result.Degraded)
	require.Equal(t, model.AdminNotRun, result.Admin.Status)
}

func TestEnrichTimesOutSlowSource(t *testing.T) {
	agg := NewAggregator(50*time.Millisecond,
		&fakeSource{name: "fast", enabled: true, partial: Partial{Deployer: "0xfast"}},
		&fakeSource{name: "slow", enabled: true, delay: 2 * time.Second, partial: Partial{
			Socials: &model.SocialLinks{Twitter: "https://x.com/late"},
		}},
	)

	start := time.Now()
	result := agg.Enrich(context.Background(), testPair(), model.SocialLinks{})
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, []string{"slow"}, result.Degraded)
	require.Equal(t, "0xfast", result.Deployer)
	require.Empty(t, result.Socials.Twitter)
}

func TestEnrichBackfillsFromGroupText(t *testing.T) {
	agg := NewAggregator(time.Second,
		&fakeSource{name: "admin", enabled: true, partial: Partial{
			Admin: &model.AdminResult{
				Status:           model.AdminResolved,
				GroupDescription: "follow us https://x.com/mooncoin",
				PinnedText:       "official site: https://mooncoin.io/launch",
			},
		}},
	)

	result := agg.Enrich(context.Background(), testPair(), model.SocialLinks{})
	require.Equal(t, "https://x.com/mooncoin", result.Socials.Twitter)
	require.Equal(t, "mooncoin.io", result.Socials.Website)
}

func TestEnrichKeepsInitialLinksWithoutSocialSource(t *testing.T) {
	agg := NewAggregator(time.Second)

	initial := model.SocialLinks{Telegram: "https://t.me/grp", Twitter: "https://x.com/grp"}
	result := agg.Enrich(context.Background(), testPair(), initial)
	require.Equal(t, initial, result.Socials)
}
