package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// newTestStore spins up a migrated Store against CI_DATABASE_URL if set,
// otherwise against a disposable testcontainers Postgres instance —
// mirroring the teacher's test/database/client.go CI-or-testcontainers seam.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	if dsn := os.Getenv("CI_DATABASE_URL"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		require.NoError(t, err)
		require.NoError(t, runMigrations(db))
		t.Cleanup(func() { _ = db.Close() })
		return NewFromDB(db)
	}

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("mutaforge_test"),
		postgres.WithUsername("mutaforge"),
		postgres.WithPassword("mutaforge"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := Open(ctx, Config{DSN: dsn, MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
