package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	CRDBDSN         string        `env:"CRDB_DSN"`
	MongoURI        string        `env:"MONGO_URI"`
	MongoDatabase   string        `env:"MONGO_DATABASE" envDefault:"treks"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RabbitURL       string        `env:"RABBIT_URL"`
	RabbitExchange  string        `env:"RABBIT_EXCHANGE" envDefault:"trek.events"`
	NotifierQueue   string        `env:"NOTIFIER_QUEUE" envDefault:"notifications.q"`
	JWTPublicKey    string        `env:"JWT_PUBLIC_KEY"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"1m"`
	RateLimitUser   int           `env:"RATE_LIMIT_USER" envDefault:"10"`
	RateLimitIP     int           `env:"RATE_LIMIT_IP" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	StatusInterval  time.Duration `env:"STATUS_INTERVAL" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	return &cfg, nil
}
