package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	appconfig "freelancehub/internal/config"
	"freelancehub/internal/mqhandler"
	"freelancehub/internal/repository"
	"freelancehub/pkg/config"
	"freelancehub/pkg/db"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/mq"
	otelpkg "freelancehub/pkg/otel"
	"freelancehub/pkg/outbox"
	redisclient "freelancehub/pkg/redis"
	"freelancehub/pkg/util"
)

func main() {
	// Load config
	cfg, err := appconfig.Load(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewLogger(cfg.Log)
	defer log.Sync()

	log.Info("Starting worker service...")

	shutdownTracing, err := otelpkg.Init("freelancehub-worker", cfg.OTel, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Init DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Outbox dispatcher：定时扫描 outbox_events 并发布到 events exchange
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(outbox.NewRepository(dbConn), publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithRetention(cfg.Outbox.Retention)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := dispatcher.Register(ctx, scheduler); err != nil {
		log.Fatal("failed to register outbox dispatcher", zap.Error(err))
	}
	scheduler.Start()

	// Notification consumer
	deduper := util.NewDeduper(rdb, cfg.Worker.DedupTTL, log)
	notiHandler := mqhandler.NewNotificationHandler(repository.NewNotificationRepository(dbConn), deduper, log)

	log.Info("Initializing notification consumer", zap.String("queue", cfg.Worker.Queue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.Worker.Queue, mqhandler.RoutingKeys(), log)
	if err != nil {
		log.Fatal("failed to init notification consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.WithRetryCounter(util.NewRetryCounter(rdb, cfg.Worker.DedupTTL), cfg.Worker.MaxRetries)
	consumer.SetHandler(notiHandler.Handle)

	consumerErr := make(chan error, 1)
	go func() {
		log.Info("Starting notification consumer")
		consumerErr <- consumer.StartConsuming(ctx)
	}()

	log.Info("Worker is ready to process messages")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-consumerErr:
		if err != nil {
			log.Error("Notification consumer stopped", zap.Error(err))
		}
	}

	log.Info("Shutting down worker...")
	cancel()
	if err := scheduler.Shutdown(); err != nil {
		log.Error("Scheduler shutdown error", zap.Error(err))
	}
	log.Info("Worker shutdown complete")
}
