package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconfig "freelancehub/internal/config"
	"freelancehub/internal/handler"
	"freelancehub/internal/httpserver"
	"freelancehub/internal/repository"
	"freelancehub/internal/service/auth"
	"freelancehub/internal/service/catalog"
	"freelancehub/internal/service/lifecycle"
	"freelancehub/internal/service/recommend"
	"freelancehub/pkg/config"
	"freelancehub/pkg/db"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/mq"
	otelpkg "freelancehub/pkg/otel"
	"freelancehub/pkg/outbox"
	redisclient "freelancehub/pkg/redis"
)

func main() {
	// 1. Load config
	cfg, err := appconfig.Load(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewLogger(cfg.Log)
	defer log.Sync()

	log.Info("Starting freelancehub API", zap.String("env", config.GetConfigEnv()))

	shutdownTracing, err := otelpkg.Init("freelancehub-api", cfg.OTel, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx := context.Background()

	// 2. Init DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	if config.GetEnv("MIGRATE_ON_START", "false") == "true" {
		if _, err := repository.Migrate(ctx, dbConn, log); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
	}

	// 3. Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// 4. Init RabbitMQ publisher (admin outbox replay)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// 5. Init repositories
	st := repository.NewStore(dbConn, log)
	userRepo := repository.NewUserRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// 6. Init services
	recCache := recommend.NewRedisCache(rdb, log)
	authService := auth.NewService(userRepo, cfg.JWT.Secret, cfg.TokenTTL(), log)
	engine := lifecycle.NewEngine(st, recCache, log)
	catalogService := catalog.NewService(st, log)
	recommender := recommend.NewService(st, st, recCache, cfg.Recommendation, log)
	replayService := outbox.NewReplayService(outboxRepo, publisher, log)

	// 7. Init handlers + router
	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:           handler.NewAuthHandler(authService, log),
		Project:        handler.NewProjectHandler(engine, catalogService, log),
		Proposal:       handler.NewProposalHandler(engine, catalogService, log),
		Recommendation: handler.NewRecommendationHandler(recommender, log),
		Notification:   handler.NewNotificationHandler(notificationRepo, log),
		Dashboard:      handler.NewDashboardHandler(catalogService, log),
		Admin:          handler.NewAdminHandler(replayService, log),
	}, httpserver.RouterConfig{
		Authorizer: auth.NewAuthorizer(cfg.JWT.Secret),
		AdminToken: cfg.JWT.AdminToken,
		Checks: map[string]httpserver.ReadinessCheck{
			"db":    func(ctx context.Context) error { return dbConn.Ping(ctx) },
			"redis": func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) },
		},
		Logger: log,
	})

	// 8. Run server
	srv := httpserver.NewServer(cfg.Server.Port, router, log)
	errCh := make(chan error, 1)
	srv.Start(errCh)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		log.Error("HTTP server failed", zap.Error(err))
	}

	log.Info("Shutting down freelancehub API gracefully...")
	if err := srv.Shutdown(30 * time.Second); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
	log.Info("freelancehub API shutdown complete")
}
