package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/trek-bookings/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/trek-bookings/internal/adapters/mongo"
	"github.com/robertarktes/trek-bookings/internal/auth"
	"github.com/robertarktes/trek-bookings/internal/config"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	importData := flag.Bool("i", false, "import seed data")
	destroyData := flag.Bool("d", false, "delete all data")
	count := flag.Int("n", 8, "number of treks to generate")
	keyPath := flag.String("key", "", "RSA private key (PEM) used to print tokens for the seeded users")
	flag.Parse()

	if *importData == *destroyData {
		fmt.Fprintln(os.Stderr, "usage: seed -i [-n 8] [-key private.pem] | seed -d")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	content := mongoadapter.NewContentRepository(mongoClient.Database(cfg.MongoDatabase), logger)

	if *destroyData {
		if err := repo.Truncate(ctx); err != nil {
			log.Fatalf("failed to delete rows: %v", err)
		}
		if err := content.DeleteAll(ctx); err != nil {
			log.Fatalf("failed to delete content: %v", err)
		}
		logger.Info("data destroyed")
		return
	}

	now := time.Now().UTC()
	users := []domain.User{
		{ID: uuid.New(), Name: "Admin User", Email: "admin@example.com", Role: domain.RoleAdmin, CreatedAt: now},
		{ID: uuid.New(), Name: "Demo User", Email: "demo@example.com", Phone: "+977-1-4410000", Role: domain.RoleUser, CreatedAt: now},
	}
	for _, u := range users {
		if err := repo.EnsureUser(ctx, u); err != nil {
			log.Fatalf("failed to insert user %s: %v", u.Email, err)
		}
	}

	faker := gofakeit.New(0)
	for i := 0; i < *count; i++ {
		trek, body := fakeTrek(faker, now)
		if err := repo.InsertTrek(ctx, trek); err != nil {
			log.Fatalf("failed to insert trek: %v", err)
		}
		if err := content.PutContent(ctx, trek.ID, body); err != nil {
			log.Fatalf("failed to insert trek content: %v", err)
		}
	}
	logger.WithField("treks", *count).WithField("users", len(users)).Info("data imported")

	if *keyPath != "" {
		printTokens(*keyPath, users)
	}
}

func fakeTrek(f *gofakeit.Faker, now time.Time) (domain.Trek, domain.TrekContent) {
	start := now.AddDate(0, 0, f.IntRange(7, 120)).Truncate(24 * time.Hour)
	days := f.IntRange(3, 18)
	location := f.City() + ", " + f.Country()

	trek := domain.Trek{
		ID:              uuid.New(),
		Title:           f.Adjective() + " " + f.Noun() + " Trek",
		Description:     f.Paragraph(2, 4, 12, " "),
		Type:            domain.TrekType(f.RandomString([]string{"trek", "tour"})),
		Difficulty:      domain.Difficulty(f.RandomString([]string{"easy", "moderate", "difficult", "extreme"})),
		Duration:        fmt.Sprintf("%d days", days),
		Price:           decimal.NewFromFloat(f.Price(300, 4000)).Round(0),
		Location:        location,
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, days),
		MaxParticipants: f.IntRange(6, 24),
		Images:          []string{f.URL()},
		Status:          domain.TrekUpcoming,
		Featured:        f.Bool(),
		CreatedAt:       now,
	}

	body := domain.TrekContent{
		Included: []string{"Accommodation", "Permits", "Guide"},
		Excluded: []string{"International flights", "Travel insurance"},
	}
	for i := 0; i < 3; i++ {
		body.Highlights = append(body.Highlights, f.Sentence(6))
	}
	for d := 1; d <= days; d++ {
		body.Itinerary = append(body.Itinerary, domain.ItineraryDay{Day: d, Title: "Day " + fmt.Sprint(d) + ": " + f.City(), Description: f.Sentence(10)})
	}
	return trek, body
}

func printTokens(path string, users []domain.User) {
	pem, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read key: %v", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		log.Fatalf("failed to parse key: %v", err)
	}
	signer := auth.NewSigner(key, 30*24*time.Hour)
	for _, u := range users {
		token, err := signer.Sign(u)
		if err != nil {
			log.Fatalf("failed to sign token: %v", err)
		}
		fmt.Printf("%s (%s): %s\n", u.Email, u.Role, token)
	}
}
