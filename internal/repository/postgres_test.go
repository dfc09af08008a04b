package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ViniMesquitaa/map-medical/pkg/postgres"
)

// TestPostgresStores проверяет SQL-реализации на настоящем PostgreSQL
func TestPostgresStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}

	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "medical",
				"POSTGRES_PASSWORD": "medical",
				"POSTGRES_DB":       "emergency_app",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://medical:medical@%s:%s/emergency_app?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.Migrate(dsn, "file://../../migrations", false))

	pool, err := postgres.NewPostgresDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	t.Run("requests", func(t *testing.T) {
		testRequestStore(t, NewRequestRepository(pool))
	})
	t.Run("responders", func(t *testing.T) {
		testResponderStore(t, NewResponderRepository(pool))
	})
}
