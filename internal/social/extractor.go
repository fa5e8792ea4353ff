// Package social validates and enriches the social links attached to a
// discovered pair: Telegram group links, Twitter/X profiles, and websites.
package social

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/model"
)

// Service is the rate-limit bucket for social link validation traffic.
const Service = "social"

var (
	// TelegramPattern matches a public t.me group/channel link and captures
	// the handle.
	TelegramPattern = regexp.MustCompile(`https?://t\.me/([A-Za-z0-9_]+)`)
	// TwitterPattern matches a Twitter/X profile link and captures the handle.
	TwitterPattern = regexp.MustCompile(`https?://(?:twitter\.com|x\.com)/([A-Za-z0-9_]+)`)

	urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

	// t.me paths that are platform features, not groups.
	reservedTelegramPaths = map[string]bool{
		"share":       true,
		"addstickers": true,
		"joinchat":    true,
		"proxy":       true,
		"socks":       true,
	}
)

// Extractor validates social links against the live services and extracts
// links from free-form text. Validation results are cached so repeated
// observations of the same group do not burn rate-limit budget.
type Extractor struct {
	client *fetch.Client
	cache  *gocache.Cache
}

// NewExtractor creates an extractor using the shared fetch client.
func NewExtractor(client *fetch.Client) *Extractor {
	return &Extractor{
		client: client,
		cache:  gocache.New(10*time.Minute, 30*time.Minute),
	}
}

// ValidateAndEnrich checks each present link and discards the ones that do
// not resolve. The returned error marks a degraded validation (the Telegram
// check itself failed); the partial result remains usable.
func (e *Extractor) ValidateAndEnrich(ctx context.Context, links model.SocialLinks) (model.SocialLinks, error) {
	out := links
	var degraded error

	if out.Telegram != "" {
		ok, err := e.ValidateTelegram(ctx, out.Telegram)
		if err != nil {
			degraded = fmt.Errorf("telegram validation: %w", err)
			out.Telegram = ""
		} else if !ok {
			log.Info().Str("url", out.Telegram).Msg("invalid telegram link discarded")
			out.Telegram = ""
		}
	}

	if out.Twitter != "" {
		// Soft check only. Twitter blocks most automated requests, so a
		// failure never discards the link here; strict mode handles the
		// pattern check at filter time.
		if ok := e.validateTwitter(ctx, out.Twitter); !ok {
			log.Debug().Str("url", out.Twitter).Msg("twitter link did not resolve")
		}
	}

	if out.Website != "" {
		out.Website = NormalizeWebsite(out.Website)
	}

	return out, degraded
}

// ValidateTelegram reports whether a t.me link points at a public
// group/channel page.
func (e *Extractor) ValidateTelegram(ctx context.Context, rawURL string) (bool, error) {
	match := TelegramPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return false, nil
	}
	handle := match[1]
	if reservedTelegramPaths[strings.ToLower(handle)] {
		return false, nil
	}

	if cached, found := e.cache.Get(rawURL); found {
		return cached.(bool), nil
	}

	body, err := e.client.Get(ctx, Service, rawURL)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) && fe.Kind == fetch.KindClientError {
			// The page does not exist; a definitive miss, not a failure.
			e.cache.SetDefault(rawURL, false)
			return false, nil
		}
		return false, err
	}

	valid := isTelegramGroupPage(body)
	e.cache.SetDefault(rawURL, valid)
	return valid, nil
}

// validateTwitter does a HEAD probe and treats any 2xx/3xx as alive.
func (e *Extractor) validateTwitter(ctx context.Context, rawURL string) bool {
	if cached, found := e.cache.Get(rawURL); found {
		return cached.(bool)
	}
	code, err := e.client.Head(ctx, Service, rawURL)
	if err != nil {
		// Twitter often rejects probes; assume the link is fine.
		return true
	}
	alive := code >= 200 && code < 400
	e.cache.SetDefault(rawURL, alive)
	return alive
}

// isTelegramGroupPage walks the t.me preview HTML looking for the group page
// markers. A 200 without any parseable markers is still accepted: Telegram
// serves stripped pages to some regions.
func isTelegramGroupPage(body []byte) bool {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return true
	}

	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "tgme_page") {
					found = true
					return
				}
			}
		}
		if n.Type == html.TextNode {
			text := strings.ToLower(n.Data)
			if strings.Contains(text, "members") || strings.Contains(text, "subscribers") {
				found = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if found {
		return true
	}
	// No markers at all usually means a stripped page rather than a miss.
	return len(body) > 0
}

// NormalizeWebsite reduces a website URL to its bare domain.
func NormalizeWebsite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	domain := parsed.Host
	if domain == "" {
		domain = parsed.Path
	}
	domain = strings.TrimPrefix(domain, "www.")
	if idx := strings.Index(domain, ":"); idx >= 0 {
		domain = domain[:idx]
	}
	return strings.ToLower(domain)
}

// ExtractLinksFromText pulls telegram/twitter/website links out of free-form
// text such as a group description or pinned message.
func ExtractLinksFromText(text string) model.SocialLinks {
	var links model.SocialLinks

	if m := TelegramPattern.FindString(text); m != "" {
		links.Telegram = m
	}
	if m := TwitterPattern.FindString(text); m != "" {
		links.Twitter = m
	}

	for _, m := range urlPattern.FindAllString(text, -1) {
		candidate := strings.TrimRight(m, ".,!)")
		parsed, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		domain := strings.ToLower(parsed.Host)
		if strings.Contains(domain, "t.me") ||
			strings.Contains(domain, "twitter.com") ||
			strings.Contains(domain, "x.com") ||
			strings.Contains(domain, "telegram.org") ||
			strings.Contains(domain, "discord") {
			continue
		}
		links.Website = candidate
		break
	}

	return links
}
