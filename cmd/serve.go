package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leadworks/leadgate/internal/assign"
	"github.com/leadworks/leadgate/internal/autoreply"
	"github.com/leadworks/leadgate/internal/channel/whatsapp"
	"github.com/leadworks/leadgate/internal/classify"
	"github.com/leadworks/leadgate/internal/config"
	"github.com/leadworks/leadgate/internal/dedupe"
	"github.com/leadworks/leadgate/internal/intake"
	"github.com/leadworks/leadgate/internal/notify"
	"github.com/leadworks/leadgate/internal/notify/ws"
	"github.com/leadworks/leadgate/internal/queue"
	queueamqp "github.com/leadworks/leadgate/internal/queue/amqp"
	queuesqs "github.com/leadworks/leadgate/internal/queue/sqs"
	"github.com/leadworks/leadgate/internal/sla"
	"github.com/leadworks/leadgate/internal/store"
	"github.com/leadworks/leadgate/internal/store/lite"
	"github.com/leadworks/leadgate/internal/store/pg"
	"github.com/leadworks/leadgate/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the intake pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, lvl := config.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	stores, db, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	consumer, err := openConsumer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	sender := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		FlowID:        cfg.WhatsApp.FlowID,
		RatePerSecond: cfg.WhatsApp.RatePerSecond,
	})

	var notifier notify.Notifier = notify.Noop{}
	var hub *ws.Hub
	if cfg.Notify.Token != "" {
		hub = ws.NewHub(ws.Config{
			Host:           cfg.Notify.Host,
			Port:           cfg.Notify.Port,
			Token:          cfg.Notify.Token,
			AllowedOrigins: cfg.Notify.AllowedOrigins,
		}, logger)
		notifier = hub
	}

	orch := intake.NewOrchestrator(intake.Options{
		Leads:      stores.Leads,
		Categories: stores.Categories,
		Messages:   stores.Messages,
		Classifier: classify.NewDetector(stores.Categories),
		Selector:   assign.NewSelector(stores.Agents),
		Guard:      dedupe.NewGuard(stores.Leads, stores.Messages, cfg.DedupeWindow()),
		SLA:        sla.NewTracker(stores.SLA, cfg.FirstResponseWindow()),
		Sender:     sender,
		AutoReply:  autoreply.NewResponder(sender, stores.Messages, logger),
		Notifier:   notifier,
		Logger:     logger,
	})

	runner := queue.NewRunner(consumer, orch.Handle, logger)

	logger.Info("leadgate starting",
		"version", Version,
		"queue_backend", cfg.Queue.Backend,
		"config", cfgPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })
	if hub != nil {
		g.Go(func() error { return hub.Start(ctx) })
	}
	g.Go(func() error { return config.Watch(ctx, cfgPath, lvl, logger) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("leadgate stopped")
	return nil
}

func openStores(cfg *config.Config) (*store.Stores, *sql.DB, error) {
	if cfg.Database.PostgresDSN != "" {
		return pg.NewStores(cfg.Database.PostgresDSN)
	}
	return lite.NewStores(config.ExpandHome(cfg.Database.SQLitePath))
}

func openConsumer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Consumer, error) {
	switch cfg.Queue.Backend {
	case "", "sqs":
		return queuesqs.New(ctx, queuesqs.Config{
			QueueURL:  cfg.Queue.SQS.QueueURL,
			Region:    cfg.Queue.SQS.Region,
			AccessKey: cfg.Queue.SQS.AccessKey,
			SecretKey: cfg.Queue.SQS.SecretKey,
			Endpoint:  cfg.Queue.SQS.Endpoint,
		})
	case "amqp":
		return queueamqp.New(queueamqp.Config{
			URL:   cfg.Queue.AMQP.URL,
			Queue: cfg.Queue.AMQP.Queue,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
