package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adilet/commhub/internal/classifier"
	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/connector"
	"github.com/adilet/commhub/internal/nlp"
	"github.com/adilet/commhub/internal/notifier"
	"github.com/adilet/commhub/internal/pipeline"
	"github.com/adilet/commhub/internal/scheduling"
	"github.com/adilet/commhub/internal/server"
	"github.com/adilet/commhub/internal/status"
	"github.com/adilet/commhub/internal/storage"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dryRun := flag.Bool("dry-run", false, "Don't send replies or notifications")
	interval := flag.Duration("interval", 0, "Run batches on this interval instead of once (e.g. 15m)")
	flag.Parse()

	// Setup logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize storage. Without a backend there is nowhere to put messages,
	// so this is the only fatal setup failure.
	store, err := initializeStorage(ctx, cfg, *dryRun)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize classifier with its analysis helper
	analyzer := nlp.NewAnalyzer()
	msgClassifier := classifier.New(cfg.LLM, analyzer)

	// Initialize scheduling link provider
	scheduler := scheduling.NewCalendlyScheduler(cfg.Calendly)
	if cfg.Calendly.APIKey != "" && cfg.Calendly.User != "" {
		if events, err := scheduler.ScheduledEvents(ctx, 0); err != nil {
			slog.Warn("Failed to list upcoming Calendly events", "error", err)
		} else {
			slog.Info("Upcoming Calendly events", "count", len(events))
		}
	}

	// Calendar holds for routed interview requests
	var eventCreator scheduling.EventCreator
	if cfg.Calendar.Enabled {
		if *dryRun {
			eventCreator = scheduling.NewMockEventCreator()
			slog.Info("Calendar events will be logged only")
		} else if gcal, err := scheduling.NewGoogleCalendar(ctx, cfg.Calendar); err != nil {
			slog.Warn("Failed to initialize Google Calendar, holds disabled", "error", err)
		} else {
			eventCreator = gcal
		}
	}

	// Initialize notifier
	var msgNotifier notifier.Notifier
	if *dryRun || cfg.Pushover.AppToken == "" {
		msgNotifier = notifier.NewMockNotifier()
		slog.Info("Notifications will be logged only")
	} else {
		msgNotifier = notifier.NewPushoverNotifier(cfg.Pushover)
	}

	// In-memory status view
	statusStore := status.NewStore(500)

	p := pipeline.New(msgClassifier, store, scheduler, msgNotifier, statusStore)
	if eventCreator != nil {
		p.SetEventCreator(eventCreator)
	}
	if *dryRun {
		p.SetDryRun(true)
		slog.Info("Dry run: replies will be logged only")
	}
	for _, c := range initializeConnectors(cfg) {
		p.Register(c)
		slog.Info("Registered connector", "name", c.Name())
	}

	// Start the status server only for long-running mode
	if *interval > 0 && cfg.Server.Enabled {
		srv := server.New(statusStore, cfg.Server.Port)
		if err := srv.Start(); err != nil {
			slog.Error("Failed to start status server", "error", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()
		}
	}

	if *interval <= 0 {
		report := p.Run(ctx)
		if len(report.Failures) > 0 {
			slog.Warn("Batch completed with failures", "count", len(report.Failures))
		}
		return
	}

	slog.Info("Running on interval", "interval", *interval)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	p.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown complete")
			return
		case <-ticker.C:
			p.Run(ctx)
		}
	}
}

func initializeStorage(ctx context.Context, cfg *config.Config, dryRun bool) (storage.Storage, error) {
	if dryRun {
		// Keep dry runs local.
		return storage.NewSQLiteStorage(cfg.Storage.SQLite.Path)
	}
	switch cfg.Storage.Backend {
	case "sheets":
		return storage.NewSheetsStorage(ctx, cfg.Storage.Sheets)
	default:
		return storage.NewSQLiteStorage(cfg.Storage.SQLite.Path)
	}
}

func initializeConnectors(cfg *config.Config) []connector.Connector {
	var connectors []connector.Connector

	if cfg.Gmail.Enabled {
		connectors = append(connectors, connector.NewGmailConnector(cfg.Gmail))
	}

	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" {
			slog.Warn("Slack enabled but bot token missing, skipping")
		} else {
			connectors = append(connectors, connector.NewSlackConnector(cfg.Slack))
		}
	}

	if cfg.Discord.Enabled {
		if cfg.Discord.BotToken == "" {
			slog.Warn("Discord enabled but bot token missing, skipping")
		} else {
			connectors = append(connectors, connector.NewDiscordConnector(cfg.Discord))
		}
	}

	if cfg.LinkedIn.Enabled {
		if cfg.LinkedIn.APIKey == "" || cfg.LinkedIn.MessageAgentID == "" {
			slog.Warn("LinkedIn enabled but PhantomBuster credentials missing, skipping")
		} else {
			connectors = append(connectors, connector.NewLinkedInConnector(cfg.LinkedIn))
		}
	}

	if cfg.Handshake.Enabled {
		if cfg.Handshake.Username == "" || cfg.Handshake.Password == "" {
			slog.Warn("Handshake enabled but login credentials missing, skipping")
		} else {
			connectors = append(connectors, connector.NewHandshakeConnector(cfg.Handshake))
		}
	}

	if cfg.Telegram.Enabled {
		connectors = append(connectors, connector.NewTelegramConnector(cfg.Telegram))
	}

	return connectors
}
