package coachingonboarding

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/coaching-onboarding/internal/config"
	"github.com/magabrotheeeer/coaching-onboarding/internal/storage/memory"
	"github.com/magabrotheeeer/coaching-onboarding/internal/storage/repository"
)

func TestOpenStorage_EmptyDSNUsesMemory(t *testing.T) {
	app := &App{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	storage, err := app.openStorage(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, storage)
	assert.Empty(t, app.closers)
}

func TestOpenStorage_MigrationFailureReleasesDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	app := &App{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	_, err = app.openStorage(&config.Config{
		StorageConnectionString: dsn,
		MigrationsPath:          filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
	assert.Empty(t, app.closers)

	// С настоящими миграциями хранилище открывается и регистрирует закрытие.
	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	storage, err := app.openStorage(&config.Config{
		StorageConnectionString: dsn,
		MigrationsPath:          migrationsPath,
	})
	require.NoError(t, err)
	assert.IsType(t, &repository.Storage{}, storage)
	require.Len(t, app.closers, 1)
	app.close()
	assert.Empty(t, app.closers)
}
