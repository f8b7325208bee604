package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/arbitrage"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/bot"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/catalog"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/config"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/extract"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/matcher"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/pipeline"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/telegram"
)

func main() {
	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("mode", cfg.AppMode).Msg("Starting RPG trade client")

	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Database initialization failed")
	}

	session, err := telegram.NewSession(cfg.TelegramToken, cfg.TradeGroupID, cfg.InfoGroupID)
	if err != nil {
		log.Fatal().Err(err).Msg("Telegram connection failed")
	}
	session.Start()
	defer session.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.AppMode {
	case "enumerate":
		err = runEnumeration(ctx, cfg, db, session)
	case "trade":
		err = runTrading(ctx, cfg, db, session)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Run failed")
	}
	log.Info().Msg("Shutdown complete")
}

// runEnumeration populates the catalog: all equipment ids first, then all
// resource ids, strictly one lookup in flight.
func runEnumeration(ctx context.Context, cfg *config.Config, db *database.Database, session *telegram.Session) error {
	enum := catalog.NewEnumerator(
		session,
		db,
		map[database.ItemKind]string{
			database.KindEquipment: cfg.EquipCommand,
			database.KindResource:  cfg.ResourceCommand,
		},
		catalog.Markers{
			RateLimit:       cfg.RateLimitMarker,
			NotFound:        cfg.NotFoundMarkers,
			NotTransferable: cfg.NotTransferableMarker,
		},
		catalog.Options{
			ReplyTimeout: cfg.ReplyTimeout,
			Cooldown:     cfg.RateLimitCooldown,
			SendInterval: cfg.SendInterval,
		},
	)

	if err := enum.Enumerate(ctx, database.KindEquipment, cfg.EquipmentLastID); err != nil {
		return err
	}
	return enum.Enumerate(ctx, database.KindResource, cfg.ResourceLastID)
}

// runTrading wires the online phase: group messages through extraction,
// resolution, the offer ledger and arbitrage detection, with the operator
// bot alongside.
func runTrading(ctx context.Context, cfg *config.Config, db *database.Database, session *telegram.Session) error {
	items, err := db.ListItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Warn().Msg("Catalog is empty, run enumerate mode first")
	}
	log.Info().Int("items", len(items)).Msg("Catalog snapshot loaded")

	operatorBot := bot.New(session, db, cfg.NotifyChatID, cfg.TradeGroupID)
	operatorBot.Start()
	defer operatorBot.Stop()

	coordinator := pipeline.NewCoordinator(
		db,
		matcher.New(items),
		extract.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel),
		arbitrage.NewDetector(db, operatorBot),
	)

	return coordinator.Run(ctx, session.Inbound())
}
