package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/ratelimit"
)

func testNotifier(srv *httptest.Server) *Notifier {
	cfg := model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "dexleads-test", MaxRetries: 1}
	n := NewNotifier("test-token", "-1001234", fetch.NewClient(cfg, ratelimit.NewGroup()))
	n.base = srv.URL
	return n
}

func sampleLead() *model.Lead {
	return &model.Lead{
		Chain:         "ethereum",
		TokenName:     "Moon <Coin>",
		TokenSymbol:   "MOON",
		TokenAddress:  "0x1111111111111111111111111111111111111111",
		PairAddress:   "0x2222222222222222222222222222222222222222",
		URL:           "https://dexscreener.com/ethereum/0x2222",
		PairCreatedAt: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		Telegram:      "https://t.me/mooncoin",
		Admins:        []model.TelegramAdmin{{Username: "founder", IsCreator: true}},
		Deployer:      "0xdeployer",
	}
}

func TestSendLead(t *testing.T) {
	var got struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv).Send(context.Background(), sampleLead()))
	require.Equal(t, "-1001234", got.ChatID)
	require.Equal(t, "HTML", got.ParseMode)
	require.Contains(t, got.Text, "Moon &lt;Coin&gt;")
	require.Contains(t, got.Text, "@founder (owner)")
	require.Contains(t, got.Text, "0xdeployer")
	require.NotContains(t, got.Text, "<Coin>")
}

func TestSendLeadAPIRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	err := testNotifier(srv).Send(context.Background(), sampleLead())
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")
}

func TestRenderLeadHiddenAdmins(t *testing.T) {
	lead := sampleLead()
	lead.Admins = nil
	lead.AdminsHidden = true

	text := renderLead(lead)
	require.Contains(t, text, "Admins: hidden")
}
