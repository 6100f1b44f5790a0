package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/trek-bookings/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/trek-bookings/internal/adapters/mongo"
	"github.com/robertarktes/trek-bookings/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/trek-bookings/internal/adapters/redis"
	"github.com/robertarktes/trek-bookings/internal/auth"
	"github.com/robertarktes/trek-bookings/internal/capacity"
	"github.com/robertarktes/trek-bookings/internal/catalog"
	"github.com/robertarktes/trek-bookings/internal/config"
	httphandler "github.com/robertarktes/trek-bookings/internal/http"
	"github.com/robertarktes/trek-bookings/internal/idempotency"
	"github.com/robertarktes/trek-bookings/internal/ledger"
	"github.com/robertarktes/trek-bookings/internal/notify"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/robertarktes/trek-bookings/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(ctx, cfg, "trek-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitMetrics()

	verifier, err := auth.NewVerifier(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("failed to load jwt public key: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	crdbRepo := crdb.NewRepository(pool)
	if err := crdbRepo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDatabase)
	content := mongoadapter.NewContentRepository(mongoDB, logger)
	notifications := mongoadapter.NewNotificationRepository(mongoDB, logger)
	if err := notifications.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("failed to create notification indexes")
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL, logger)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn, cfg.RabbitExchange)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	treks := catalog.NewService(crdbRepo, content, redisCache, cfg.CatalogCacheTTL, rabbitPub, logger)
	bookings := ledger.New(
		crdb.NewBookings(crdbRepo),
		capacity.NewAccountant(logger),
		rabbitPub,
		logger,
		ledger.WithAuditor(mongoadapter.NewAuditLogger(mongoDB, logger)),
		ledger.WithTrekCache(treks),
	)

	handlers := httphandler.NewHandlers(httphandler.Deps{
		Ledger:        bookings,
		Catalog:       treks,
		Notifications: notify.NewService(notifications, crdbRepo, rabbitPub, logger),
		Users:         crdbRepo,
		Inquiries:     mongoadapter.NewInquiryRepository(mongoDB, logger),
		Checks: map[string]httphandler.Check{
			"crdb": crdbRepo.Ping,
			"mongo": func(ctx context.Context) error {
				return mongoClient.Ping(ctx, readpref.Primary())
			},
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		Logger: logger,
	})

	limits := httphandler.RateLimits{PerUser: cfg.RateLimitUser, PerIP: cfg.RateLimitIP, Window: cfg.RateLimitWindow}
	r := httphandler.SetupRouter(handlers, logger, verifier, rl, limits, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
