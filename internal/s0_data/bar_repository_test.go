package s0_data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/config"
	"github.com/wonny/quantmon/pkg/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{
		Enabled: true, URL: url, MaxConns: 2, MinConns: 1,
		MaxConnLifetime: time.Hour, MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func TestBarRepositoryRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewBarRepository(db.Pool)

	_, err := db.Pool.Exec(ctx, `DELETE FROM data.daily_bars WHERE symbol = 'ZZTEST'`)
	require.NoError(t, err)

	d1 := time.Date(2025, 12, 4, 0, 0, 0, 0, time.UTC)
	bar := contracts.MissingBar("ZZTEST", d1)
	bar.Close = 101.5

	require.NoError(t, repo.SaveBatch(ctx, []contracts.Bar{bar}))

	bar.Close = 102
	require.NoError(t, repo.SaveBatch(ctx, []contracts.Bar{bar}), "upsert is idempotent")

	bars, err := repo.LoadBars(ctx)
	require.NoError(t, err)

	var found *contracts.Bar
	for i := range bars {
		if bars[i].Symbol == "ZZTEST" {
			found = &bars[i]
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 102, found.Close, 1e-9)
	assert.True(t, contracts.IsMissing(found.DeliveryPct), "NULL reads back as missing")

	first, last, err := repo.DateRange(ctx)
	require.NoError(t, err)
	assert.False(t, first.After(d1))
	assert.False(t, last.Before(d1))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(contracts.Missing))
	v := nullable(3.5)
	require.NotNil(t, v)
	assert.Equal(t, 3.5, *v)
	assert.True(t, contracts.IsMissing(orMissing(nil)))
	assert.Equal(t, 3.5, orMissing(v))
}
