package dexscreener

import (
	"regexp"
	"strings"
	"time"

	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/social"
)

var (
	evmAddressPattern    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

func normalizeChain(chainID string) string {
	return strings.ToLower(strings.TrimSpace(chainID))
}

// validAddress checks the address shape for the chain. Unknown chains only
// require a non-empty address.
func validAddress(chain, address string) bool {
	switch chain {
	case "ethereum", "bsc", "base":
		return evmAddressPattern.MatchString(address)
	case "solana":
		return solanaAddressPattern.MatchString(address)
	}
	return address != ""
}

// parsePair converts raw pair JSON into a PairRecord. Pairs without a
// creation timestamp, with malformed addresses, or with a placeholder symbol
// are rejected as unparseable and return nil.
func parsePair(p *pairJSON, chain string) *model.PairRecord {
	if p.PairCreatedAt == 0 {
		return nil
	}

	tokenAddress := strings.TrimSpace(p.BaseToken.Address)
	pairAddress := strings.TrimSpace(p.PairAddress)
	symbol := strings.TrimSpace(p.BaseToken.Symbol)

	if tokenAddress == "" || pairAddress == "" || p.URL == "" {
		return nil
	}
	if symbol == "" || symbol == "???" {
		return nil
	}
	if !validAddress(chain, tokenAddress) || !validAddress(chain, pairAddress) {
		return nil
	}

	name := p.BaseToken.Name
	if name == "" {
		name = "Unknown"
	}

	return &model.PairRecord{
		Chain:         chain,
		TokenName:     name,
		TokenSymbol:   symbol,
		TokenAddress:  tokenAddress,
		PairAddress:   pairAddress,
		DexID:         p.DexID,
		URL:           strings.TrimSpace(p.URL),
		PairCreatedAt: time.UnixMilli(p.PairCreatedAt).UTC(),
		LiquidityUSD:  p.Liquidity.USD,
		FDV:           p.FDV,
	}
}

// extractSocials merges social links from the profile links, the pair's
// info.socials/info.websites, and finally a regex sweep over the profile
// description. First hit per slot wins.
func extractSocials(cand *model.Candidate, pair *pairJSON) model.SocialLinks {
	var links model.SocialLinks

	for _, l := range cand.Links {
		linkType := strings.ToLower(l.Type)
		if linkType == "" {
			linkType = strings.ToLower(l.Label)
		}
		if l.URL == "" {
			continue
		}
		switch {
		case strings.Contains(linkType, "telegram") || strings.Contains(l.URL, "t.me"):
			if links.Telegram == "" {
				links.Telegram = l.URL
			}
		case strings.Contains(linkType, "twitter") ||
			strings.Contains(l.URL, "x.com") || strings.Contains(l.URL, "twitter.com"):
			if links.Twitter == "" {
				links.Twitter = l.URL
			}
		case strings.Contains(linkType, "website"):
			if links.Website == "" {
				links.Website = l.URL
			}
		}
	}

	for _, s := range pair.Info.Socials {
		platform := strings.ToLower(s.Platform)
		if platform == "" {
			platform = strings.ToLower(s.Type)
		}
		switch platform {
		case "telegram":
			if links.Telegram == "" {
				links.Telegram = socialURL(s.URL, s.Handle, "https://t.me/")
			}
		case "twitter", "x":
			if links.Twitter == "" {
				links.Twitter = socialURL(s.URL, s.Handle, "https://x.com/")
			}
		}
	}

	for _, w := range pair.Info.Websites {
		if w.URL != "" && links.Website == "" {
			links.Website = w.URL
		}
	}

	if links.Telegram == "" {
		links.Telegram = strings.TrimRight(social.TelegramPattern.FindString(cand.Description), ".,!)")
	}
	if links.Twitter == "" {
		links.Twitter = strings.TrimRight(social.TwitterPattern.FindString(cand.Description), ".,!)")
	}

	return links
}

// socialURL prefers an explicit URL, falling back to prefixing a bare handle.
func socialURL(url, handle, prefix string) string {
	if url != "" {
		return url
	}
	if handle == "" {
		return ""
	}
	if strings.HasPrefix(handle, "http") {
		return handle
	}
	return prefix + handle
}
