// Package enrich fans a candidate pair out to the configured enrichment
// sources and merges their partial results.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/social"
)

// Partial is the contribution of one source. Nil fields are "no opinion";
// the aggregator only merges what a source actually resolved.
type Partial struct {
	Socials  *model.SocialLinks
	Admin    *model.AdminResult
	Deployer string
}

// Source is a pluggable enrichment capability. Sources run concurrently and
// must honor the context deadline. A disabled source is skipped entirely and
// its fields stay absent; a failing source degrades its fields to absent
// without failing the aggregation.
type Source interface {
	Name() string
	Enabled() bool
	Resolve(ctx context.Context, pair *model.PairRecord, links model.SocialLinks) (Partial, error)
}

// Aggregator coordinates the enrichment fan-out for one candidate.
type Aggregator struct {
	sources []Source
	timeout time.Duration
}

// NewAggregator builds an aggregator over the registered sources.
func NewAggregator(timeout time.Duration, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, timeout: timeout}
}

type sourceOutcome struct {
	name    string
	partial Partial
	err     error
}

// Enrich runs every enabled source concurrently under the per-candidate
// timeout and merges the partials into one result. Sources that error are
// listed in Degraded; their fields remain absent.
func (a *Aggregator) Enrich(ctx context.Context, pair *model.PairRecord, initial model.SocialLinks) *model.EnrichmentResult {
	result := &model.EnrichmentResult{
		Socials: initial,
		Admin:   model.AdminResult{Status: model.AdminNotRun},
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	outcomes := make(chan sourceOutcome)
	var wg sync.WaitGroup
	for _, src := range a.sources {
		if !src.Enabled() {
			continue
		}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			partial, err := src.Resolve(ctx, pair, initial)
			outcomes <- sourceOutcome{name: src.Name(), partial: partial, err: err}
		}(src)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		if out.err != nil {
			log.Warn().
				Str("source", out.name).
				Str("pair", pair.Key()).
				Err(out.err).
				Msg("enrichment source degraded")
			result.Degraded = append(result.Degraded, out.name)
		}
		// A source can fail and still contribute a partial result.
		merge(result, out.partial)
	}

	fillFromAdminText(result)
	return result
}

// merge applies a partial onto the aggregate.
func merge(result *model.EnrichmentResult, p Partial) {
	if p.Socials != nil {
		result.Socials = *p.Socials
	}
	if p.Admin != nil {
		result.Admin = *p.Admin
	}
	if p.Deployer != "" {
		result.Deployer = p.Deployer
	}
}

// fillFromAdminText backfills missing twitter/website links from the
// telegram group description and pinned message.
func fillFromAdminText(result *model.EnrichmentResult) {
	text := result.Admin.GroupDescription
	if result.Admin.PinnedText != "" {
		text += "\n" + result.Admin.PinnedText
	}
	if text == "" {
		return
	}

	extra := social.ExtractLinksFromText(text)
	if result.Socials.Twitter == "" && extra.Twitter != "" {
		result.Socials.Twitter = extra.Twitter
		log.Info().Str("twitter", extra.Twitter).Msg("found twitter via telegram group")
	}
	if result.Socials.Website == "" && extra.Website != "" {
		result.Socials.Website = social.NormalizeWebsite(extra.Website)
		log.Info().Str("website", result.Socials.Website).Msg("found website via telegram group")
	}
}
