package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vkuzmenko/dexleads/internal/bot"
	"github.com/vkuzmenko/dexleads/internal/dedup"
	"github.com/vkuzmenko/dexleads/internal/dexscreener"
	"github.com/vkuzmenko/dexleads/internal/enrich"
	"github.com/vkuzmenko/dexleads/internal/explorer"
	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/filter"
	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/notify"
	"github.com/vkuzmenko/dexleads/internal/ratelimit"
	"github.com/vkuzmenko/dexleads/internal/social"
	"github.com/vkuzmenko/dexleads/internal/tgadmin"
)

var dryRun bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the discovery loop",
	Long: `Run starts the polling loop: every cycle it fetches the latest token
profiles, selects candidates from the tracked chains, enriches new pairs,
filters them, and notifies the configured Telegram channel about each
qualifying lead exactly once.

Example:
  dexleads run
  dexleads run --dry-run
  DEXLEADS_TELEGRAM_BOT_TOKEN=... dexleads run --config ./dexleads.yaml`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "record leads without sending notifications")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	limits := ratelimit.NewGroup()
	for service, lim := range map[string]model.ServiceLimit{
		dexscreener.ServiceProfiles: cfg.Services.DexProfiles,
		dexscreener.ServicePairs:    cfg.Services.DexPairs,
		social.Service:              cfg.Services.Social,
		explorer.Service:            cfg.Services.Explorer,
		notify.Service:              cfg.Services.Telegram,
	} {
		if err := limits.Register(service, lim.PerSec, lim.Burst); err != nil {
			return fmt.Errorf("register %s rate limit: %w", service, err)
		}
	}

	fetcher := fetch.NewClient(cfg.HTTP, limits)
	dex := dexscreener.NewClient(cfg.HTTP.BaseURL, fetcher)

	var sources []enrich.Source
	if cfg.Enrichment.SocialValidate {
		sources = append(sources, enrich.NewSocialSource(social.NewExtractor(fetcher)))
	}
	if cfg.Enrichment.AdminExtract && cfg.Telegram.BotToken != "" {
		sources = append(sources, enrich.NewAdminSource(tgadmin.NewExtractor(cfg.Telegram.BotToken, fetcher)))
	}
	if cfg.Enrichment.WalletLookup {
		sources = append(sources, enrich.NewWalletSource(explorer.NewWalletLookup(cfg.Explorers, fetcher)))
	}
	aggregator := enrich.NewAggregator(cfg.Enrichment.Timeout, sources...)

	store, err := dedup.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("ledger close failed")
		}
	}()
	log.Info().Int("pairs", store.Len()).Str("path", cfg.Store.Path).Msg("ledger loaded")

	var notifier bot.Sender
	switch {
	case dryRun:
		log.Warn().Msg("dry run: notifications disabled")
	case cfg.Telegram.BotToken == "" || cfg.Telegram.ChannelID == "":
		log.Warn().Msg("telegram credentials missing: notifications disabled")
	default:
		notifier = notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChannelID, fetcher)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bot.New(cfg, dex, aggregator, filter.New(cfg), store, notifier).WithLimits(limits)
	runErr := b.Run(ctx)

	for service, health := range fetcher.Health() {
		log.Info().
			Str("service", service).
			Int64("attempts", health.Attempts).
			Int64("errors", health.Errors).
			Msg("service health")
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

// setupLogging configures the global zerolog logger.
func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	if verbose && parsed > zerolog.DebugLevel {
		parsed = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
