// Package notify delivers lead cards to a Telegram chat through the Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/model"
)

// Service is the rate-limit bucket for Bot API traffic, shared with the
// admin extractor.
const Service = "telegram"

const apiBase = "https://api.telegram.org"

var chainEmoji = map[string]string{
	"ethereum": "⟠",
	"bsc":      "🟡",
	"base":     "🔵",
	"solana":   "🟣",
}

// Notifier sends one HTML-formatted message per lead. Delivery failures are
// returned to the caller; the notifier never retries beyond the fetch
// client's own policy.
type Notifier struct {
	base    string
	token   string
	chatID  string
	fetcher *fetch.Client
}

// NewNotifier creates a notifier posting to the given chat.
func NewNotifier(token, chatID string, fetcher *fetch.Client) *Notifier {
	return &Notifier{base: apiBase, token: token, chatID: chatID, fetcher: fetcher}
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send posts the lead card. The Bot API's own rate limiting (429 plus
// retry_after) is handled by the fetch client.
func (n *Notifier) Send(ctx context.Context, lead *model.Lead) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     renderLead(lead),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.base, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	body, err := n.fetcher.Do(ctx, Service, req)
	if err != nil {
		return fmt.Errorf("send lead %s: %w", lead.TokenSymbol, err)
	}

	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("send lead %s: decode response: %w", lead.TokenSymbol, err)
	}
	if !resp.OK {
		return fmt.Errorf("send lead %s: telegram: %s", lead.TokenSymbol, resp.Description)
	}

	log.Info().
		Str("chain", lead.Chain).
		Str("symbol", lead.TokenSymbol).
		Msg("lead notified")
	return nil
}

// renderLead builds the HTML card for one lead.
func renderLead(lead *model.Lead) string {
	var b strings.Builder

	emoji := chainEmoji[lead.Chain]
	if emoji == "" {
		emoji = "🔗"
	}
	fmt.Fprintf(&b, "%s <b>%s</b> (%s) on %s\n",
		emoji, html.EscapeString(lead.TokenName), html.EscapeString(lead.TokenSymbol),
		html.EscapeString(lead.Chain))
	fmt.Fprintf(&b, "Created %s\n\n", lead.PairCreatedAt.UTC().Format("2006-01-02 15:04 UTC"))

	fmt.Fprintf(&b, "<code>%s</code>\n", html.EscapeString(lead.TokenAddress))
	fmt.Fprintf(&b, "<a href=\"%s\">Dexscreener</a>\n", html.EscapeString(lead.URL))

	if lead.Telegram != "" {
		fmt.Fprintf(&b, "TG: %s\n", html.EscapeString(lead.Telegram))
	}
	if lead.Twitter != "" {
		fmt.Fprintf(&b, "X: %s\n", html.EscapeString(lead.Twitter))
	}
	if lead.Website != "" {
		fmt.Fprintf(&b, "Web: %s\n", html.EscapeString(lead.Website))
	}

	switch {
	case len(lead.Admins) > 0:
		names := make([]string, 0, len(lead.Admins))
		for _, a := range lead.Admins {
			name := "@" + a.Username
			if a.IsCreator {
				name += " (owner)"
			}
			names = append(names, html.EscapeString(name))
		}
		fmt.Fprintf(&b, "\nAdmins: %s\n", strings.Join(names, ", "))
	case lead.AdminsHidden:
		b.WriteString("\nAdmins: hidden\n")
	}

	if lead.Deployer != "" {
		fmt.Fprintf(&b, "Deployer: <code>%s</code>\n", html.EscapeString(lead.Deployer))
	}

	return b.String()
}
