// Package bot runs the discovery loop: poll token profiles, triage them,
// enrich survivors, filter, record, and notify.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkuzmenko/dexleads/internal/dedup"
	"github.com/vkuzmenko/dexleads/internal/filter"
	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/ratelimit"
)

// Discoverer is the profile/pair lookup surface of the Dexscreener client.
type Discoverer interface {
	LatestProfiles(ctx context.Context) ([]model.Candidate, error)
	PairDetails(ctx context.Context, cand model.Candidate) (*model.PairRecord, model.SocialLinks, error)
}

// Enricher runs the enrichment fan-out for one pair.
type Enricher interface {
	Enrich(ctx context.Context, pair *model.PairRecord, initial model.SocialLinks) *model.EnrichmentResult
}

// Sender delivers one lead notification.
type Sender interface {
	Send(ctx context.Context, lead *model.Lead) error
}

var nowFunc = time.Now

// Bot owns one discovery loop over the configured chains.
type Bot struct {
	cfg      *model.Config
	dex      Discoverer
	enricher Enricher
	filter   *filter.Filter
	store    *dedup.Store
	notifier Sender
	limits   *ratelimit.Group

	metrics Metrics
}

// New assembles a bot from its collaborators. The notifier may be nil, in
// which case qualifying leads are recorded but not delivered.
func New(cfg *model.Config, dex Discoverer, enricher Enricher, flt *filter.Filter, store *dedup.Store, notifier Sender) *Bot {
	return &Bot{
		cfg:      cfg,
		dex:      dex,
		enricher: enricher,
		filter:   flt,
		store:    store,
		notifier: notifier,
	}
}

// WithLimits attaches the limiter group so cycle logs can report remaining
// per-service budget.
func (b *Bot) WithLimits(limits *ratelimit.Group) *Bot {
	b.limits = limits
	return b
}

// Metrics returns the live counters.
func (b *Bot) Metrics() *Metrics { return &b.metrics }

// Run polls until the context is canceled. The first cycle starts
// immediately; subsequent cycles follow the poll interval.
func (b *Bot) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", b.cfg.Discovery.PollInterval).
		Strs("chains", b.cfg.Discovery.TrackedChains).
		Msg("discovery loop started")

	ticker := time.NewTicker(b.cfg.Discovery.PollInterval)
	defer ticker.Stop()

	for {
		b.cycle(ctx)
		select {
		case <-ctx.Done():
			log.Info().Interface("totals", b.metrics.Snapshot()).Msg("discovery loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle performs one poll. Failures inside a cycle never stop the loop.
func (b *Bot) cycle(ctx context.Context) {
	b.metrics.Cycles.Add(1)

	profiles, err := b.dex.LatestProfiles(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profile poll failed")
		return
	}
	b.metrics.ProfilesSeen.Add(int64(len(profiles)))

	tracked := profiles[:0:0]
	for _, cand := range profiles {
		if !b.cfg.IsTracked(cand.Chain) {
			b.metrics.UntrackedChain.Add(1)
			continue
		}
		tracked = append(tracked, cand)
	}

	selected := selectCandidates(tracked, b.cfg.Discovery.MaxProfilesPerPoll, b.cfg.Discovery.FairChainSampling)

	// Dedup fast path: drop already-finalized pairs, and repeats of the
	// same key within this batch, before spending any fetch budget. The
	// key is case-normalized, so two profile entries differing only in
	// address casing collapse here too.
	fresh := selected[:0:0]
	seen := make(map[string]struct{}, len(selected))
	for _, cand := range selected {
		key := model.PairKey(cand.Chain, cand.TokenAddress)
		if _, dup := seen[key]; dup {
			b.metrics.DedupHits.Add(1)
			continue
		}
		seen[key] = struct{}{}
		if b.store.HasTerminal(key) {
			b.metrics.DedupHits.Add(1)
			continue
		}
		fresh = append(fresh, cand)
	}

	triage := log.Debug().
		Int("profiles", len(profiles)).
		Int("tracked", len(tracked)).
		Int("selected", len(selected)).
		Int("new", len(fresh))
	if b.limits != nil {
		triage = triage.Interface("budget", b.limits.Snapshot())
	}
	triage.Msg("cycle triage")

	var wg sync.WaitGroup
	sem := make(chan struct{}, b.cfg.Discovery.PairConcurrency)
	for _, cand := range fresh {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(cand model.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			b.process(ctx, cand)
		}(cand)
	}
	wg.Wait()
}

// process takes one candidate through fetch, enrichment, filtering, and
// notification. Errors are isolated to the candidate.
func (b *Bot) process(ctx context.Context, cand model.Candidate) {
	key := model.PairKey(cand.Chain, cand.TokenAddress)
	logger := log.With().Str("pair", key).Logger()

	pair, links, err := b.dex.PairDetails(ctx, cand)
	if err != nil {
		b.metrics.FetchFailures.Add(1)
		logger.Warn().Err(err).Msg("pair fetch failed")
		return
	}
	if pair == nil {
		logger.Debug().Str("reason", "no_pair").Msg("candidate skipped")
		b.recordSkip(key, "no_pair")
		return
	}

	if pair.Age(nowFunc()) > b.cfg.Discovery.MaxPairAge {
		b.metrics.Stale.Add(1)
		logger.Debug().
			Dur("age", pair.Age(nowFunc())).
			Str("reason", "stale").
			Msg("candidate skipped")
		b.recordSkip(key, "stale")
		return
	}

	enr := b.enricher.Enrich(ctx, pair, links)

	verdict := b.filter.Evaluate(pair, enr)
	if !verdict.Pass {
		b.metrics.Filtered.Add(1)
		logger.Info().
			Str("chain", pair.Chain).
			Str("reason", verdict.FailedRule()).
			Msg("candidate filtered")
		b.recordSkip(key, "filtered:"+verdict.FailedRule())
		return
	}
	b.filter.Sanitize(enr)

	lead := model.NewLead(pair, enr, nowFunc().UTC())

	// The terminal record lands before delivery: a send failure must not
	// allow a duplicate notification on a later cycle. Only the worker
	// that wins the insert sends, so concurrent finalizations of the same
	// key produce exactly one notification.
	inserted, err := b.store.RecordTerminal(key, dedup.OutcomeNotified, lead)
	if err != nil {
		var conflict *dedup.ConflictError
		if errors.As(err, &conflict) {
			b.metrics.Conflicts.Add(1)
			logger.Error().
				Str("existing", string(conflict.Existing)).
				Msg("terminal outcome conflict")
			return
		}
		logger.Error().Err(err).Msg("ledger write failed")
		return
	}
	if !inserted {
		b.metrics.DedupHits.Add(1)
		return
	}

	if b.notifier == nil {
		b.metrics.Notified.Add(1)
		logger.Info().Str("symbol", pair.TokenSymbol).Msg("lead recorded (notifier disabled)")
		return
	}
	if err := b.notifier.Send(ctx, lead); err != nil {
		// The record stays notified: at-most-once beats at-least-once
		// for a noisy alert channel.
		b.metrics.NotifyFailures.Add(1)
		logger.Error().Err(err).Msg("notification failed")
		return
	}
	b.metrics.Notified.Add(1)
}

// recordSkip writes a skip outcome when the ledger is configured to keep
// them. Conflicts here mean another worker finalized the pair first and are
// not an error.
func (b *Bot) recordSkip(key, reason string) {
	if !b.cfg.Store.RecordSkips {
		return
	}
	if err := b.store.RecordSkip(key, reason); err != nil {
		var conflict *dedup.ConflictError
		if errors.As(err, &conflict) {
			return
		}
		log.Error().Err(err).Str("pair", key).Msg("skip record failed")
	}
}
