package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"eventhub/config"
	"eventhub/internal/notify"
	"eventhub/internal/render"
	"eventhub/internal/services"
	"eventhub/internal/services/gateway"
	"eventhub/internal/services/gateway/xendit"
	"eventhub/internal/store"
	"eventhub/monitoring"
	"eventhub/utils"

	_ "eventhub/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

// container holds the wired services. It is built once the app is bootstrapped so
// that app.Logger() is the persisted PocketBase logger.
type container struct {
	cfg     *config.Config
	redis   *redis.Client
	monitor *monitoring.Monitor
	log     *slog.Logger

	payments     *services.PaymentService
	webhooks     *services.WebhookService
	attendance   *services.AttendanceService
	certificates *services.CertificateService
	export       *services.ExportService
}

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		// locks and rate limits fail open, so the API can still serve
		slog.Warn("redis unavailable at startup", "error", err)
	}

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	var c *container
	app.OnBootstrap().BindFunc(func(e *core.BootstrapEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		built, err := newContainer(e.App, cfg, redisClient, monitor)
		if err != nil {
			return err
		}
		c = built
		return nil
	})

	app.RootCmd.AddCommand(certificatesCommand(func() *container { return c }))

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if cfg.EnableMetrics {
			go monitor.Run(ctx)
			go monitoring.Serve(ctx, cfg.MetricsPort)
		}

		registerRoutes(e, c)
		c.log.Info("server routes registered", "environment", cfg.Environment, "timezone", cfg.Timezone)

		return e.Next()
	})

	registerEventHooks(app, cfg)

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		if err := redisClient.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
		return e.Next()
	})

	return app.Start()
}

func newContainer(app core.App, cfg *config.Config, redisClient *redis.Client, monitor *monitoring.Monitor) (*container, error) {
	logger := app.Logger()
	loc := cfg.Location()

	st := store.NewPocketBaseStore(app)
	files := store.NewFileStorage(app)

	gateways := gateway.NewRegistry()
	gateways.Register(gateway.NewGuarded(xendit.NewClient(xendit.Config{
		BaseURL:   cfg.XenditBaseURL,
		SecretKey: cfg.XenditSecretKey,
	}), cfg.GatewayTimeout, monitor))
	if err := gateways.SetPrimary(gateway.Provider(cfg.PaymentGateway)); err != nil {
		return nil, fmt.Errorf("PAYMENT_GATEWAY: %w", err)
	}

	var notifier services.Notifier = notify.Nop{}
	if cfg.PubNubPublishKey != "" {
		notifier = notify.NewPubNubNotifier(notify.Config{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		}, logger)
	} else {
		logger.Warn("pubnub keys not set, realtime notifications disabled")
	}

	renderer, err := render.NewPDFRenderer(files)
	if err != nil {
		return nil, err
	}

	return &container{
		cfg:     cfg,
		redis:   redisClient,
		monitor: monitor,
		log:     logger,
		payments: services.NewPaymentService(st, gateways, notifier, monitor, logger, services.PaymentConfig{
			InvoiceDuration: cfg.InvoiceDuration,
			SuccessURL:      cfg.PaymentSuccessURL,
			FailureURL:      cfg.PaymentFailureURL,
		}),
		webhooks: services.NewWebhookService(st, xendit.NewCallbackVerifier(cfg.XenditCallbackToken),
			services.NewRedisLocker(redisClient), notifier, monitor, logger, cfg.WebhookLockTTL),
		attendance: services.NewAttendanceService(st, notifier, monitor, logger, loc),
		certificates: services.NewCertificateService(st, files, renderer, notifier, monitor, logger, services.CertificateConfig{
			Workers:       cfg.CertificateWorkers,
			RenderTimeout: cfg.RenderTimeout,
			Location:      loc,
		}),
		export: services.NewExportService(st, logger, loc),
	}, nil
}
