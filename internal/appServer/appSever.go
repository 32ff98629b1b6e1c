package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanshumudigonda/musclemeter/config"
	"github.com/himanshumudigonda/musclemeter/internal/database/memory"
	repository "github.com/himanshumudigonda/musclemeter/internal/database/postgres"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/himanshumudigonda/musclemeter/internal/service"
	"github.com/himanshumudigonda/musclemeter/internal/transport"
	"github.com/himanshumudigonda/musclemeter/internal/worker"
	"github.com/himanshumudigonda/musclemeter/pkg/auth"
	"github.com/himanshumudigonda/musclemeter/pkg/kafka"
	"github.com/himanshumudigonda/musclemeter/pkg/postgres"
	"github.com/himanshumudigonda/musclemeter/pkg/queue"
	rabbitmq "github.com/himanshumudigonda/musclemeter/pkg/rabbitMQ"
	"github.com/himanshumudigonda/musclemeter/pkg/redis"
	"github.com/himanshumudigonda/musclemeter/pkg/scheduler"
	"github.com/himanshumudigonda/musclemeter/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	// No WriteTimeout: venue streams are long lived. Plain requests are
	// bounded by the request timeout middleware.
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type repositories struct {
	venues   repository.VenueRepository
	plans    repository.PlanRepository
	bookings repository.BookingRepository
}

// closers run in reverse order on shutdown.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logrus.Warnf("Error during shutdown: %v", err)
		}
	}
}

func setupLogger(cfg *config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// NewServer wires storage, brokers and handlers from cfg and serves until
// SIGINT or SIGTERM.
func NewServer(cfg *config.Config) {
	setupLogger(&cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cleanup closers
	defer cleanup.closeAll()

	health := map[string]transport.HealthCheck{}

	// Storage
	var repos repositories
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			logrus.Fatalf("Failed to initialize database: %v", err)
		}
		cleanup.add(db.Close)

		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(db); err != nil {
				logrus.Fatalf("Failed to run migrations: %v", err)
			}
		}
		repos = repositories{
			venues:   repository.NewVenueRepository(db),
			plans:    repository.NewPlanRepository(db),
			bookings: repository.NewBookingRepository(db),
		}
		health["database"] = db.PingContext
	default:
		store := memory.NewStore()
		repos = repositories{venues: store.Venues(), plans: store.Plans(), bookings: store.Bookings()}
		logrus.Warn("Using in-memory storage, data is lost on restart")
	}

	// Venue pub/sub, shared across instances through Redis when enabled
	var broker pubsub.Broker = pubsub.NewHub()
	var taskPublisher service.TaskPublisher
	var taskQueue *queue.RedisQueue

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		cleanup.add(redisClient.Close)
		health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

		redisHub := pubsub.NewRedisHub(redisClient, cfg.Redis.ChannelPrefix)
		go func() {
			if err := redisHub.Run(ctx); err != nil {
				logrus.Errorf("Venue event relay stopped: %v", err)
			}
		}()
		broker = redisHub

		queueConfig := queue.DefaultRedisQueueConfig()
		queueConfig.Workers = cfg.Worker.QueueWorkers
		queueConfig.MaxRetries = cfg.Worker.MaxRetries
		taskQueue = queue.NewRedisQueue(redisClient, queueConfig)
		cleanup.add(taskQueue.Close)
		taskPublisher = service.NewQueueAdapter(taskQueue)
	} else {
		logrus.Info("Redis disabled, venue events stay in process and notifications are off")
	}

	// External event publishers
	var publishers []service.EventPublisher

	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.NewRabbitMQ(rabbitmq.RabbitMQConfig{
			URL:          cfg.RabbitMQ.URL,
			ExchangeName: cfg.RabbitMQ.Exchange,
			Domains:      []string{"booking"},
		})
		if err != nil {
			logrus.Errorf("Failed to connect to RabbitMQ: %v. Continuing without booking events...", err)
		} else {
			cleanup.add(mq.Close)
			health["rabbitmq"] = mq.HealthCheck
			publishers = append(publishers, mq)
		}
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			logrus.Errorf("Failed to initialize Kafka producer: %v. Continuing without occupancy stream...", err)
		} else {
			cleanup.add(producer.Close)
			publishers = append(publishers, producer)
		}
	}

	// Initialize services
	capacityService := service.NewCapacityService(repos.venues, broker, publishers...)
	venueService := service.NewVenueService(repos.venues, repos.plans, cfg.Booking.PaymentNote, broker, publishers...)
	bookingService := service.NewBookingService(repos.bookings, repos.venues, repos.plans, taskPublisher, broker, publishers...)

	// Notification consumer
	if taskQueue != nil {
		if cfg.Telegram.Enabled {
			bot, err := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
			if err != nil {
				logrus.Errorf("Failed to initialize Telegram bot: %v. Notifications disabled", err)
			} else {
				taskHandler := queue.NewTaskHandler(bot)
				if err := taskQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
					logrus.Errorf("Queue subscriber error: %v", err)
				} else {
					logrus.Info("Queue subscriber started")
				}
			}
		} else {
			logrus.Warn("Telegram disabled, queued notifications are not consumed")
		}
	}

	// Pending booking expiry
	cleanupWorker := worker.NewBookingCleanupWorker(bookingService, cfg.Booking.PendingTTL, cfg.Worker.BatchSize)
	jobs := scheduler.NewScheduler()
	jobs.Every("booking-expiry", cfg.Worker.CleanupInterval, cleanupWorker.RunOnce)
	if taskQueue != nil {
		jobs.Every("queue-stats", cfg.Worker.QueueStatsInterval, queue.ReportStats(taskQueue, 10))
	}
	jobs.Start(ctx)
	logrus.Info("Expiration scheduler started")

	tokens, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	if err != nil {
		logrus.Fatalf("Failed to initialize token manager: %v", err)
	}

	// Initialize handlers
	handlers := transport.Handlers{
		Venue:     transport.NewVenueHandler(venueService),
		Booking:   transport.NewBookingHandler(bookingService),
		Occupancy: transport.NewOccupancyHandler(capacityService),
		Stream:    transport.NewStreamHandler(venueService, broker, 0),
	}

	if cfg.IsProduction() || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(handlers, tokens, transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   health,
	})

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.ServerAddress(),
		"version": cfg.Server.AppVersion,
		"storage": cfg.Database.Driver,
	}).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Info("App Shutting Down")

	handlers.Stream.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	cancel()
	jobs.Wait()
	logrus.WithFields(cleanupWorker.GetStats()).Info("Booking cleanup stopped")
}
