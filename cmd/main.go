package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/config"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/events"
	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/jsonclient"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/loyalty"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/promotions"
	"restaurant-pos/internal/seating"
	"restaurant-pos/internal/services/kitchen"
	"restaurant-pos/internal/services/notification"
	"restaurant-pos/internal/services/order"
	"restaurant-pos/internal/services/pricing"
	"restaurant-pos/internal/services/settlement"
	"restaurant-pos/internal/services/split"
	"restaurant-pos/internal/services/tracking"
	"restaurant-pos/internal/store"
)

func main() {
	var (
		mode        = flag.String("mode", "", "Service mode (pos-api, kitchen-monitor, notification-subscriber)")
		configFile  = flag.String("config", "config.yaml", "Path to the YAML config file")
		port        = flag.Int("port", 0, "HTTP port, overrides http.port")
		monitorName = flag.String("monitor-name", "kitchen-monitor", "Name reported by the kitchen monitor")
		prefetch    = flag.Int("prefetch", 10, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	log := logger.NewWithLevel(*mode, cfg.Log.Level)
	defer log.Sync()
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": cfg.HTTP.Port,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	switch *mode {
	case "pos-api":
		err = runPOSAPI(ctx, cfg, log)
	case "kitchen-monitor":
		err = runKitchenMonitor(ctx, cfg, log, *monitorName)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// infra is what every mode that touches orders needs
type infra struct {
	db         *database.DB
	conn       *messaging.Connection
	store      store.Store
	dispatcher *events.Dispatcher
}

func (i *infra) Close() {
	i.dispatcher.Close()
	if i.conn != nil {
		i.conn.Close()
	}
	if i.db != nil {
		i.db.Close()
	}
}

func setup(ctx context.Context, cfg *config.Config, log *logger.Logger) (*infra, error) {
	requestID := logger.GenerateRequestID()

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}
	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	return &infra{
		db:         db,
		conn:       conn,
		store:      store.NewPostgres(db, log),
		dispatcher: events.NewDispatcher(messaging.NewPublisher(conn, log), log),
	}, nil
}

// runPOSAPI serves the HTTP surface
func runPOSAPI(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	in, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	redis := cache.NewRedis(cfg.Redis)
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		log.Warn("cache_unavailable", "Redis unreachable, catalog reads go to the database", requestID, map[string]interface{}{
			"addr":  cfg.Redis.Addr,
			"error": err.Error(),
		})
	}

	rates := pricing.RatesFromConfig(cfg.Pricing)
	coordinator := settlement.NewCoordinator(in.store, in.dispatcher, log)

	orders := order.NewService(order.Deps{
		Store:           in.store,
		Catalog:         catalog.NewCached(catalog.NewPostgres(in.db), redis, cfg.Redis.TTL, log),
		Promotions:      promotions.NewClient(jsonclient.New(cfg.External.PromotionsURL, cfg.External.Timeout)),
		Loyalty:         loyalty.NewClient(jsonclient.New(cfg.External.LoyaltyURL, cfg.External.Timeout)),
		Seating:         seating.NewPostgres(in.db),
		Coordinator:     coordinator,
		Dispatcher:      in.dispatcher,
		Rates:           rates,
		ExternalTimeout: cfg.External.Timeout,
		Logger:          log,
	})
	orderHandler := order.NewHandler(orders, log, cfg.HTTP.RequestTimeout)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.Logging(log))

	router.GET("/health", orderHandler.HealthCheck())
	orderHandler.Register(router)
	tracking.NewHandler(tracking.NewService(in.store, log), log).Register(router)
	split.NewHandler(split.NewService(in.store, coordinator, in.dispatcher, rates, log), log).Register(router)
	kitchen.NewHandler(kitchen.NewService(in.store, in.dispatcher, log), log).Register(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("POS API started on port %d", cfg.HTTP.Port), requestID, map[string]interface{}{
			"port": cfg.HTTP.Port,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

// runKitchenMonitor polls the board and announces escalations
func runKitchenMonitor(ctx context.Context, cfg *config.Config, log *logger.Logger, name string) error {
	in, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	svc := kitchen.NewService(in.store, in.dispatcher, log)
	return kitchen.NewMonitor(name, cfg.Kitchen.PollInterval, svc, in.dispatcher, log).Start(ctx)
}

// runNotificationSubscriber prints every POS event from the notifications queue
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, os.Stdout, log).Start(ctx)
}
