package enrich

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/vkuzmenko/dexleads/internal/explorer"
	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/social"
	"github.com/vkuzmenko/dexleads/internal/tgadmin"
)

// SocialSource validates and normalizes the social links attached to a pair.
type SocialSource struct {
	extractor *social.Extractor
}

func NewSocialSource(extractor *social.Extractor) *SocialSource {
	return &SocialSource{extractor: extractor}
}

func (s *SocialSource) Name() string  { return "social" }
func (s *SocialSource) Enabled() bool { return true }

func (s *SocialSource) Resolve(ctx context.Context, _ *model.PairRecord, links model.SocialLinks) (Partial, error) {
	validated, err := s.extractor.ValidateAndEnrich(ctx, links)
	return Partial{Socials: &validated}, err
}

// AdminSource resolves the visible administrators of a pair's Telegram group.
// After a resolution failure that indicates the bot token is unusable, the
// source disables itself for the rest of the process lifetime.
type AdminSource struct {
	extractor *tgadmin.Extractor
	disabled  atomic.Bool
}

func NewAdminSource(extractor *tgadmin.Extractor) *AdminSource {
	return &AdminSource{extractor: extractor}
}

func (s *AdminSource) Name() string { return "admin" }

func (s *AdminSource) Enabled() bool {
	return s.extractor != nil && !s.disabled.Load()
}

func (s *AdminSource) Resolve(ctx context.Context, _ *model.PairRecord, links model.SocialLinks) (Partial, error) {
	if links.Telegram == "" {
		return Partial{Admin: &model.AdminResult{Status: model.AdminNotRun}}, nil
	}

	admin, err := s.extractor.ResolveAdmins(ctx, links.Telegram)
	if err != nil {
		if tgadmin.IsAuthError(err) {
			log.Error().Err(err).Msg("telegram bot token rejected, disabling admin source")
			s.disabled.Store(true)
		}
		return Partial{}, err
	}
	return Partial{Admin: &admin}, nil
}

// WalletSource resolves the deployer wallet through the chain's block explorer.
type WalletSource struct {
	lookup *explorer.WalletLookup
}

func NewWalletSource(lookup *explorer.WalletLookup) *WalletSource {
	return &WalletSource{lookup: lookup}
}

func (s *WalletSource) Name() string  { return "wallet" }
func (s *WalletSource) Enabled() bool { return s.lookup != nil }

func (s *WalletSource) Resolve(ctx context.Context, pair *model.PairRecord, _ model.SocialLinks) (Partial, error) {
	deployer, err := s.lookup.Deployer(ctx, pair.Chain, pair.TokenAddress)
	if err != nil {
		return Partial{}, err
	}
	return Partial{Deployer: deployer}, nil
}
