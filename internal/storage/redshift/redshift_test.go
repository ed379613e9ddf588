package redshift

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"black-heatmap/internal/config"
	"black-heatmap/internal/querystore"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/storage/migrations"
	"black-heatmap/internal/trading"
)

// setupTestDB starts a PostgreSQL container standing in for Redshift and
// seeds a staging schema. Returns the DSN and a cleanup function.
func setupTestDB(t *testing.T) (string, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	seed := NewWithDSN(dsn, "", storage.Options{Logger: zerolog.Nop()})
	require.NoError(t, seed.Connect(ctx))
	for _, stmt := range []string{
		`CREATE SCHEMA staging`,
		`CREATE TABLE staging.user_master (user_id TEXT, join_datetime TIMESTAMP, balance NUMERIC(20,2))`,
		`INSERT INTO staging.user_master VALUES ('A1A', '2023-01-02 03:04:05', 1234.50), ('A2A', '2023-02-01 00:00:00', NULL)`,
	} {
		_, err := seed.ExecuteQuery(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	seed.Disconnect(ctx)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return dsn, cleanup
}

func TestConnector_SearchPathAndTypes(t *testing.T) {
	dsn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	c := NewWithDSN(dsn, "staging", storage.Options{Logger: zerolog.Nop()})

	err := storage.WithSession(ctx, c, func(ctx context.Context, s storage.Connector) error {
		// Unqualified table name resolves through search_path.
		got, err := s.ExecuteQuery(ctx, `SELECT user_id, join_datetime, balance FROM user_master ORDER BY user_id`)
		require.NoError(t, err)

		assert.Equal(t, []string{"user_id", "join_datetime", "balance"}, got.Columns)
		require.Equal(t, 2, got.Len())
		assert.Equal(t, "A1A", got.Value(0, "user_id"))
		assert.Equal(t, time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), got.Value(0, "join_datetime"))
		assert.True(t, decimal.RequireFromString("1234.50").Equal(got.Value(0, "balance").(decimal.Decimal)))
		assert.Nil(t, got.Value(1, "balance"))
		return nil
	})
	require.NoError(t, err)
}

func TestConnector_QueryError(t *testing.T) {
	dsn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	c := NewWithDSN(dsn, "", storage.Options{Logger: zerolog.Nop()})
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect(ctx)

	_, err := c.ExecuteQuery(ctx, `SELECT * FROM user_master`)
	assert.ErrorIs(t, err, storage.ErrQuery)
}

func TestConnector_ConnectFailure(t *testing.T) {
	c := NewWithDSN("postgres://u:p@127.0.0.1:1/none?connect_timeout=1", "", storage.Options{Logger: zerolog.Nop()})
	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, storage.ErrConnection)
}

func TestConnector_NotConnected(t *testing.T) {
	c := NewWithDSN("postgres://u:p@localhost/db", "", storage.Options{Logger: zerolog.Nop()})
	_, err := c.ExecuteQuery(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, storage.ErrNotConnected)
}

func TestConnector_SampleWarehouse(t *testing.T) {
	dsn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	c := NewWithDSN(dsn, "trading", storage.Options{Logger: zerolog.Nop()})
	require.NoError(t, storage.WithSession(ctx, c, func(ctx context.Context, s storage.Connector) error {
		return migrations.Apply(ctx, s, config.DriverRedshift)
	}))

	p := trading.NewProcessor(querystore.New(querystore.Embedded(), zerolog.Nop()), c,
		querystore.KindRedshift, zerolog.Nop(), nil)
	res := p.ProcessIDs(ctx, []string{"A00001A", "A00002A", "A00003A"}, "2024-01-01", "", "")

	require.Equal(t, 2, res.BaseInfo.Len())
	assert.Equal(t, []string{"mid", "join_datetime", "first_access_datetime", "last_access_datetime", "access_count", "distinct_ip_count"},
		res.BaseInfo.Columns)
	counts := map[any]any{}
	for i := 0; i < res.BaseInfo.Len(); i++ {
		counts[res.BaseInfo.Value(i, "mid")] = res.BaseInfo.Value(i, "access_count")
	}
	assert.Equal(t, map[any]any{"A00001A": int64(2), "A00002A": int64(1)}, counts)
	assert.True(t, res.H1.Empty())

	h1 := p.FetchAggregate(ctx, []string{"A00001A"}, "2024-01-02 00:00:00", "2024-01-02 23:59:59", trading.Hourly)
	assert.Equal(t, 2, h1.Len())
}
