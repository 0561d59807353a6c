package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"modguard/internal/antiflood"
	"modguard/internal/chat"
	"modguard/internal/commands"
	"modguard/internal/config"
	"modguard/internal/database/boltstore"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Console logging until the configuration says otherwise
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	configureLogging(cfg)
	log.Info().Msg("Starting modguard")

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "data/modguard.db"
	}

	store, err := boltstore.Open(boltstore.Options{Path: dbPath})
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	log.Info().Str("path", dbPath).Msg("Database opened")

	api := chat.NewBotAPI(cfg.BotToken)

	engine := antiflood.NewEngine(
		antiflood.Limits{
			Daily:       cfg.DailyLimit,
			Hourly:      cfg.HourlyLimit,
			ShortTerm:   cfg.ShortTermLimit,
			ShortWindow: cfg.ShortTermWindow,
			ShortMute:   cfg.ShortTermMute,
			HourlyMute:  cfg.HourlyMute,
			VoiceMute:   cfg.VoiceMute,
			DailyMute:   cfg.DailyMute,
		},
		antiflood.ExemptPolicy{
			OwnerID:       cfg.OwnerID,
			ExemptOwner:   cfg.ExemptOwner,
			ExemptCreator: cfg.ExemptCreator,
			ExemptAdmin:   cfg.ExemptAdmin,
		},
		api,
		store.AntifloodStore(),
	)

	cmdHandler := commands.NewHandler(engine, api, cfg.OwnerID)

	poller := chat.NewPoller(api, func(ctx context.Context, upd chat.Update) {
		handleUpdate(ctx, cfg, engine, cmdHandler, upd)
	})

	// Periodic snapshot flush so a crash loses at most one interval
	flusher := cron.New()
	if _, err := flusher.AddFunc(cfg.FlushSchedule, engine.FlushAll); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.FlushSchedule).Msg("Invalid flush schedule")
	}
	flusher.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		g.Go(func() error {
			log.Info().Str("address", cfg.MetricsAddr).Msg("Metrics listener started")
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	poller.Start(gctx)
	log.Info().Int("allowed_chats", len(cfg.AllowedChatIDs)).Msg("Update poller started")

	<-gctx.Done()
	log.Info().Msg("Shutting down")

	poller.Stop()
	<-flusher.Stop().Done()
	engine.FlushAll()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// handleUpdate routes one update: commands go to the command layer, group
// messages from allowed chats go to the decision engine, everything else
// is dropped.
func handleUpdate(ctx context.Context, cfg *config.Config, engine *antiflood.Engine, cmds *commands.Handler, upd chat.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}

	isCommand := strings.HasPrefix(msg.Text, "/")

	if msg.Chat.Type == "private" {
		if isCommand {
			cmds.Handle(ctx, msg)
		}
		return
	}

	if !cfg.AllowedChat(msg.Chat.ID) {
		return
	}

	if isCommand {
		cmds.Handle(ctx, msg)
		return
	}

	engine.HandleMessage(ctx, eventFrom(msg))
}

func eventFrom(msg *chat.Message) antiflood.Event {
	ev := antiflood.Event{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Time:      time.Unix(msg.Date, 0).UTC(),
		IsVoice:   msg.Voice != nil,
	}
	if !msg.IsAnonymous() {
		ev.SenderID = msg.From.ID
		ev.SenderName = msg.From.FirstName
	}
	return ev
}

func configureLogging(cfg *config.Config) {
	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
