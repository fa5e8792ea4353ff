package filter

import (
	"regexp"
	"time"

	"github.com/vkuzmenko/dexleads/internal/model"
)

// twitterHandlePattern is the shape a Twitter/X profile link must have to
// survive strict social validation.
var twitterHandlePattern = regexp.MustCompile(`^https?://(?:twitter\.com|x\.com)/[A-Za-z0-9_]{1,15}/?$`)

// Status is the audit-trail outcome for one rule.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Rule names, in evaluation order.
const (
	RuleChainTracked        = "chainTracked"
	RuleFreshness           = "freshness"
	RuleRequireTelegram     = "requireTelegram"
	RuleRequireVisibleAdmin = "requireVisibleAdmin"
	RuleRejectHiddenAdmins  = "rejectHiddenAdmins"
	RuleSocialValidation    = "socialValidation"
)

// RuleResult is one line of the audit trail.
type RuleResult struct {
	Rule   string `json:"rule"`
	Status Status `json:"status"`
}

// Verdict is the filter outcome: the AND of all enabled rules plus the
// ordered audit trail that produced it.
type Verdict struct {
	Pass  bool         `json:"pass"`
	Trail []RuleResult `json:"trail"`
}

// FailedRule returns the name of the first failed rule, or "" on pass.
// Used as the dedup skip reason.
func (v *Verdict) FailedRule() string {
	for _, r := range v.Trail {
		if r.Status == StatusFailed {
			return r.Rule
		}
	}
	return ""
}

// nowFunc is injectable for tests.
var nowFunc = time.Now

// Filter evaluates the ordered eligibility rules over an enriched pair.
// Rules are pure over (pair, enrichment, config); evaluation never
// short-circuits so the trail always covers every rule.
type Filter struct {
	cfg       model.FilterConfig
	isTracked func(chain string) bool
	maxAge    time.Duration
}

// New builds the filter from the discovery and filter configuration.
func New(cfg *model.Config) *Filter {
	return &Filter{
		cfg:       cfg.Filters,
		isTracked: cfg.IsTracked,
		maxAge:    cfg.Discovery.MaxPairAge,
	}
}

// Evaluate runs every rule and returns the verdict with its audit trail.
// When the test-bypass flag is set, every rule except chainTracked is
// recorded as skipped.
func (f *Filter) Evaluate(pair *model.PairRecord, enr *model.EnrichmentResult) *Verdict {
	now := nowFunc()
	bypass := f.cfg.AllowTestLeads

	// Strict social validation sanitizes the twitter field before the
	// admin/telegram rules see it. A bad link is discarded, never a
	// pair-level failure.
	socials := enr.Socials
	socialStatus := StatusSkipped
	if f.cfg.StrictSocials && !bypass {
		socialStatus = StatusPassed
		if socials.Twitter != "" && !twitterHandlePattern.MatchString(socials.Twitter) {
			socials.Twitter = ""
		}
	}

	trail := make([]RuleResult, 0, 6)
	pass := true

	record := func(rule string, enabled bool, ok bool) {
		status := StatusSkipped
		if enabled {
			status = StatusPassed
			if !ok {
				status = StatusFailed
				pass = false
			}
		}
		trail = append(trail, RuleResult{Rule: rule, Status: status})
	}

	record(RuleChainTracked, true, f.isTracked(pair.Chain))
	record(RuleFreshness, !bypass, pair.Age(now) <= f.maxAge)
	record(RuleRequireTelegram, !bypass && f.cfg.RequireTelegram, socials.Telegram != "")
	record(RuleRequireVisibleAdmin, !bypass && f.cfg.RequireVisibleAdmin, len(enr.Admin.Admins) > 0)
	record(RuleRejectHiddenAdmins, !bypass && f.cfg.RejectHiddenAdmins,
		!(enr.Admin.Status == model.AdminHidden && len(enr.Admin.Admins) == 0))
	trail = append(trail, RuleResult{Rule: RuleSocialValidation, Status: socialStatus})

	return &Verdict{Pass: pass, Trail: trail}
}

// Sanitize applies strict social validation to an enrichment result in
// place, so the notification payload matches what the rules evaluated.
func (f *Filter) Sanitize(enr *model.EnrichmentResult) {
	if !f.cfg.StrictSocials {
		return
	}
	if enr.Socials.Twitter != "" && !twitterHandlePattern.MatchString(enr.Socials.Twitter) {
		enr.Socials.Twitter = ""
	}
}
