//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresRepositories(t *testing.T) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("nfse_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/nfse_test?sslmode=disable", host, port.Port())
	db, err := Open(ctx, Config{Driver: "postgres", DSN: dsn, MaxConns: 4, DialTimeout: 10 * time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, nil) })

	require.NoError(t, Migrate(ctx, db, nil))
	require.NoError(t, HealthCheck(ctx, db, 5*time.Second, nil))

	runRepositorySuite(t, db)
}
