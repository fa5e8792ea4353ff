// Package tgadmin resolves the admin list and metadata of public Telegram
// groups through the Bot API.
package tgadmin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/social"
)

// Service is the rate-limit bucket shared with the notifier: both talk to
// the Telegram Bot API.
const Service = "telegram"

const apiBase = "https://api.telegram.org"

type chatResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		PinnedMessage struct {
			Text string `json:"text"`
		} `json:"pinned_message"`
	} `json:"result"`
	Description string `json:"description,omitempty"`
}

type adminsResponse struct {
	OK     bool `json:"ok"`
	Result []struct {
		Status string `json:"status"`
		User   struct {
			Username string `json:"username"`
		} `json:"user"`
	} `json:"result"`
	Description string `json:"description,omitempty"`
}

// Extractor resolves group admins via the Bot API. The bot can only list
// administrators of groups it can see; a rejection from Telegram is the
// "admins hidden" signal, distinct from a transport failure.
type Extractor struct {
	base    string
	token   string
	fetcher *fetch.Client
}

// NewExtractor creates an extractor for the given bot token.
func NewExtractor(token string, fetcher *fetch.Client) *Extractor {
	return &Extractor{base: apiBase, token: token, fetcher: fetcher}
}

// handle extracts the group handle from a t.me link.
func handle(tgLink string) string {
	if m := social.TelegramPattern.FindStringSubmatch(tgLink); m != nil {
		return m[1]
	}
	return ""
}

// ResolveAdmins resolves the group behind a t.me link. The returned error is
// non-nil only for transport-level failures; a group that refuses to expose
// its admin list resolves successfully with AdminHidden.
func (e *Extractor) ResolveAdmins(ctx context.Context, tgLink string) (model.AdminResult, error) {
	result := model.AdminResult{Status: model.AdminNotRun}

	name := handle(tgLink)
	if name == "" {
		return result, nil
	}
	chatID := "@" + name

	var chat chatResponse
	chatURL := fmt.Sprintf("%s/bot%s/getChat?chat_id=%s", e.base, e.token, chatID)
	if err := e.fetcher.GetJSON(ctx, Service, chatURL, &chat); err != nil {
		if isTelegramRejection(err) {
			// The chat is unknown or closed to the bot. The source ran
			// and determined nothing is visible.
			result.Status = model.AdminHidden
			return result, nil
		}
		return result, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	result.GroupTitle = chat.Result.Title
	result.GroupDescription = chat.Result.Description
	result.PinnedText = chat.Result.PinnedMessage.Text

	var admins adminsResponse
	adminsURL := fmt.Sprintf("%s/bot%s/getChatAdministrators?chat_id=%s", e.base, e.token, chatID)
	if err := e.fetcher.GetJSON(ctx, Service, adminsURL, &admins); err != nil {
		if isTelegramRejection(err) {
			log.Info().Str("chat", chatID).Msg("admin list hidden")
			result.Status = model.AdminHidden
			return result, nil
		}
		return result, fmt.Errorf("get admins %s: %w", chatID, err)
	}
	if !admins.OK {
		result.Status = model.AdminHidden
		return result, nil
	}

	result.Status = model.AdminResolved
	for _, a := range admins.Result {
		if a.User.Username == "" {
			continue
		}
		result.Admins = append(result.Admins, model.TelegramAdmin{
			Username:  a.User.Username,
			IsCreator: a.Status == "creator",
		})
	}
	if len(result.Admins) == 0 && len(admins.Result) > 0 {
		// Admin accounts exist but none expose a username.
		result.Status = model.AdminHidden
	}

	log.Debug().Str("chat", chatID).Int("admins", len(result.Admins)).Msg("admins resolved")
	return result, nil
}

// isTelegramRejection distinguishes a Bot API refusal (4xx) from a transport
// failure. 401 means the bot token itself is bad, not that the chat is
// closed, and is surfaced separately.
func isTelegramRejection(err error) bool {
	var fe *fetch.Error
	return errors.As(err, &fe) && fe.Kind == fetch.KindClientError && fe.StatusCode != 401
}

// IsAuthError reports whether the error is a Bot API token rejection.
func IsAuthError(err error) bool {
	var fe *fetch.Error
	return errors.As(err, &fe) && fe.StatusCode == 401
}
