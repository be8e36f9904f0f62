package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-notification-engine/internal/adapter"
	"github.com/vhvplatform/go-notification-engine/internal/catalog"
	"github.com/vhvplatform/go-notification-engine/internal/consumer"
	"github.com/vhvplatform/go-notification-engine/internal/dlq"
	"github.com/vhvplatform/go-notification-engine/internal/engine"
	"github.com/vhvplatform/go-notification-engine/internal/handler"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"github.com/vhvplatform/go-notification-engine/internal/middleware"
	"github.com/vhvplatform/go-notification-engine/internal/outbox"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/scheduler"
	"github.com/vhvplatform/go-notification-engine/internal/shared/config"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
	"github.com/vhvplatform/go-notification-engine/internal/shared/rabbitmq"
	"github.com/vhvplatform/go-notification-engine/internal/smtp"
)

// stores groups the persistence backends; in-memory unless MongoDB is enabled
type stores struct {
	feed        repository.FeedStore
	preferences repository.PreferenceStore
	counter     repository.DispatchCounter
	deadLetters repository.DeadLetterStore
	outbox      repository.OutboxStore
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Notification Engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	st := stores{
		feed:        repository.NewMemoryFeedStore(),
		preferences: repository.NewMemoryPreferenceStore(),
		counter:     repository.NewMemoryDispatchCounter(time.Now),
		deadLetters: repository.NewMemoryDeadLetterStore(),
		outbox:      repository.NewMemoryOutboxStore(),
	}
	var mongoClient *mongodb.MongoClient
	if cfg.MongoDB.Enabled {
		mongoClient, err = mongodb.NewMongoClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err)
		}
		defer mongoClient.Disconnect(context.Background())

		feedRepo := repository.NewFeedRepository(mongoClient)
		counterRepo := repository.NewDispatchCounterRepository(mongoClient)
		deadLetterRepo := repository.NewDeadLetterRepository(mongoClient)
		outboxRepo := repository.NewOutboxEventRepository(mongoClient)
		for _, repo := range []indexer{feedRepo, counterRepo, deadLetterRepo, outboxRepo} {
			if err := repo.EnsureIndexes(ctx); err != nil {
				log.Error("Failed to create indexes", "error", err)
			}
		}

		st = stores{
			feed:        feedRepo,
			preferences: repository.NewPreferencesRepository(mongoClient),
			counter:     counterRepo,
			deadLetters: deadLetterRepo,
			outbox:      outboxRepo,
		}
		log.Info("Using MongoDB storage", "database", cfg.MongoDB.Database)
	}

	// Initialize transports
	smtpPool := smtp.NewPool(smtp.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		DialTimeout: 10 * time.Second,
	}, cfg.SMTP.PoolSize)
	defer smtpPool.Close()

	transports := adapter.NewRegistry(
		adapter.NewEmailTransport(adapter.EmailConfig{FromEmail: cfg.SMTP.FromEmail, FromName: cfg.SMTP.FromName}, smtpPool),
		adapter.NewWebhookTransport(nil),
		adapter.NewChatTransport(nil),
		adapter.NewSMSTransport(log),
		adapter.NewPushTransport(log),
		adapter.NewInAppTransport(st.feed, nil),
	)

	// Initialize engine
	eng := engine.New(engine.Dependencies{
		Sender:      transports,
		Prober:      transports,
		Counter:     st.counter,
		Preferences: st.preferences,
		Log:         log,
	}, engine.OptionsFromConfig(cfg.Engine))

	stopMetrics := metrics.Observe(eng.Bus(), eng.Processor().Pending)
	defer stopMetrics()

	// Initialize Dead Letter Queue
	deadLetterQueue := dlq.NewDeadLetterQueue(st.deadLetters, eng.Processor(), log)
	detachDLQ := deadLetterQueue.Attach(eng.Bus())
	defer detachDLQ()

	// Initialize Scheduler
	eventScheduler := scheduler.NewEventScheduler(eng, nil, log)

	// Load catalog
	if cfg.Catalog.Path != "" {
		watcher := catalog.NewWatcher(cfg.Catalog.Path, eng, eventScheduler, log)
		sum, _, err := watcher.Load(ctx)
		if err != nil {
			log.Error("Catalog loaded with errors", "path", cfg.Catalog.Path, "error", err)
		}
		log.Info("Catalog loaded",
			"channels", sum.Channels,
			"templates", sum.Templates,
			"recipients", sum.Recipients,
			"rules", sum.Rules,
			"schedules", sum.Schedules,
		)
		if cfg.Catalog.Watch {
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					log.Error("Catalog watcher failed", "error", err)
				}
			}()
		}
	}

	eng.Start(ctx)
	eventScheduler.Start()

	// Initialize RabbitMQ
	if cfg.RabbitMQ.Enabled {
		rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer rabbitMQClient.Close()

		eventConsumer := consumer.NewEventConsumer(rabbitMQClient, eng, consumer.Config{
			Exchange:   cfg.RabbitMQ.Exchange,
			Queue:      cfg.RabbitMQ.Queue,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
		}, log)
		go func() {
			if err := eventConsumer.Run(ctx); err != nil {
				log.Error("Failed to start event consumer", "error", err)
			}
		}()

		if err := rabbitMQClient.Setup(cfg.RabbitMQ.TelemetryExchange, "", ""); err != nil {
			log.Error("Failed to declare telemetry exchange", "error", err)
		} else {
			relay := outbox.NewRelay(st.outbox, rabbitMQClient, cfg.RabbitMQ.TelemetryExchange, log)
			detachRelay := relay.Attach(eng.Bus())
			defer detachRelay()
			go relay.Run(ctx, cfg.RabbitMQ.OutboxInterval)
		}
	}

	// Initialize HTTP handlers
	handlers := handler.Handlers{
		Events:     handler.NewEventHandler(eng, log),
		Channels:   handler.NewChannelHandler(eng, log),
		Rules:      handler.NewRuleHandler(eng, log),
		Recipients: handler.NewRecipientHandler(eng, log),
		Feed:       handler.NewFeedHandler(st.feed, nil, log),
		Deliveries: handler.NewDeliveryHandler(eng, log),
		DLQ:        handler.NewDLQHandler(deadLetterQueue, log),
		Schedules:  handler.NewScheduleHandler(eventScheduler, log),
	}

	// Initialize rate limiter
	rateLimiter := middleware.NewSourceRateLimiter(cfg.Server.RateLimitPerSource, cfg.Server.RateLimitBurst)

	// Setup Gin router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if mongoClient != nil {
			if err := mongoClient.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	v1 := router.Group("/api/v1")
	v1.Use(middleware.SourceMiddleware())
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	handler.RegisterRoutes(v1, handlers)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Notification Engine started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Notification Engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	eventScheduler.Stop()
	cancel()
	eng.Stop()

	log.Info("Notification Engine stopped")
}
