package crdb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/trek-bookings/internal/adapters/crdb"
	"github.com/robertarktes/trek-bookings/internal/adapters/memory"
	"github.com/robertarktes/trek-bookings/internal/capacity"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/ledger"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRepository(t *testing.T) *crdb.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = crdbContainer.Terminate(ctx) })

	dsn, err := crdbContainer.Endpoint(ctx, "postgresql")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn+"/defaultdb?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := crdb.NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func newTrek(t *testing.T, repo *crdb.Repository, max int) domain.Trek {
	t.Helper()
	trek, err := domain.NewTrek(domain.TrekDraft{
		Title:           "Tsum Valley",
		Description:     "Hidden valley trek",
		Duration:        "14 days",
		Price:           decimal.RequireFromString("980.50"),
		Location:        "Gorkha",
		StartDate:       time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
		EndDate:         time.Now().Add(14 * 24 * time.Hour).UTC().Truncate(time.Second),
		MaxParticipants: max,
		Images:          []string{"https://img.example.com/tsum.jpg"},
	}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.InsertTrek(context.Background(), trek))
	return trek
}

func request(user, trek uuid.UUID, n int) domain.BookingRequest {
	return domain.BookingRequest{
		UserID:           user,
		TrekID:           trek,
		NumberOfPeople:   n,
		EmergencyContact: domain.EmergencyContact{Name: "Dawa", Phone: "+977 980000000", Relation: "brother"},
	}
}

func TestRepository_BookingLifecycle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	logger := observability.NewNopLogger()
	notifier := &memory.Notifier{}
	l := ledger.New(crdb.NewBookings(repo), capacity.NewAccountant(logger), notifier, logger)

	trek := newTrek(t, repo, 10)
	user := domain.User{ID: uuid.New(), Name: "Sonam", Email: "sonam@example.com", Role: domain.RoleUser, CreatedAt: time.Now()}
	require.NoError(t, repo.EnsureUser(ctx, user))

	b, err := l.Create(ctx, request(user.ID, trek.ID, 4))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3922").Equal(b.TotalAmount))

	got, err := repo.GetTrek(ctx, trek.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentParticipants)
	assert.Equal(t, []string{"https://img.example.com/tsum.jpg"}, got.Images)

	_, err = l.Create(ctx, request(user.ID, trek.ID, 7))
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	view, err := l.Get(ctx, b.ID, domain.Caller{UserID: uuid.New(), Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "Tsum Valley", view.Trek.Title)
	require.NotNil(t, view.User)
	assert.Equal(t, "Sonam", view.User.Name)

	page, err := l.List(ctx, domain.Caller{UserID: user.ID, Role: domain.RoleUser}, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = l.Cancel(ctx, b.ID, domain.Caller{UserID: user.ID, Role: domain.RoleUser})
	require.NoError(t, err)
	_, err = l.Cancel(ctx, b.ID, domain.Caller{UserID: user.ID, Role: domain.RoleUser})
	require.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	got, err = repo.GetTrek(ctx, trek.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentParticipants)

	require.ErrorIs(t, repo.DeleteTrek(ctx, trek.ID), domain.ErrConflict)
}

func TestRepository_ConcurrentLastSeats(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	logger := observability.NewNopLogger()
	l := ledger.New(crdb.NewBookings(repo), capacity.NewAccountant(logger), &memory.Notifier{}, logger)

	trek := newTrek(t, repo, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Create(ctx, request(uuid.New(), trek.ID, 3))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
		}()
	}
	wg.Wait()

	got, err := repo.GetTrek(ctx, trek.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.CurrentParticipants, got.MaxParticipants)
	assert.Equal(t, succeeded*3, got.CurrentParticipants)
	assert.Equal(t, 3, succeeded)
}

func TestRepository_UpdateTrekRespectsParticipants(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	logger := observability.NewNopLogger()
	l := ledger.New(crdb.NewBookings(repo), capacity.NewAccountant(logger), &memory.Notifier{}, logger)

	trek := newTrek(t, repo, 10)
	_, err := l.Create(ctx, request(uuid.New(), trek.ID, 6))
	require.NoError(t, err)

	five := 5
	_, err = repo.UpdateTrek(ctx, trek.ID, domain.TrekPatch{MaxParticipants: &five})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	eight := 8
	updated, err := repo.UpdateTrek(ctx, trek.ID, domain.TrekPatch{MaxParticipants: &eight})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.CurrentParticipants)
	assert.Equal(t, 8, updated.MaxParticipants)
}

func TestRepository_AdvanceStatuses(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	trek := newTrek(t, repo, 10)

	started, err := repo.StartTreks(ctx, trek.StartDate.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, domain.TrekOngoing, started[0].Status)

	completed, err := repo.CompleteTreks(ctx, trek.EndDate.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, domain.TrekCompleted, completed[0].Status)

	treks, err := repo.ListTreks(ctx, domain.TrekFilter{Status: domain.TrekUpcoming})
	require.NoError(t, err)
	assert.Empty(t, treks)
}
