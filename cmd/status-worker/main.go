package main

import (
	"context"
	"log"
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
	"github.com/robertarktes/trek-bookings/internal/capacity"
	"github.com/robertarktes/trek-bookings/internal/catalog"
	"github.com/robertarktes/trek-bookings/internal/config"
	"github.com/robertarktes/trek-bookings/internal/ledger"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "trek-status-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDatabase)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn, cfg.RabbitExchange)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	treks := catalog.NewService(repo, mongoadapter.NewContentRepository(mongoDB, logger), redisCache, cfg.CatalogCacheTTL, rabbitPub, logger)
	bookings := ledger.New(
		crdb.NewBookings(repo),
		capacity.NewAccountant(logger),
		rabbitPub,
		logger,
		ledger.WithAuditor(mongoadapter.NewAuditLogger(mongoDB, logger)),
		ledger.WithTrekCache(treks),
	)

	worker := NewStatusWorker(repo, treks, bookings, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.StatusInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown status worker")
}
