//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/events"
)

func float(v float64) *float64 {
	return &v
}

func sampleRecord(stravaID int64, laps int) domain.ActivityRecord {
	record := domain.ActivityRecord{
		StravaID:     stravaID,
		ExternalID:   "garmin_push_1",
		Name:         "Morning Run",
		Distance:     5012.3,
		MovingTime:   1560,
		ElapsedTime:  1602,
		ElevHigh:     612.4,
		SportType:    "Run",
		StartDate:    "2024-03-10T09:00:00+01:00",
		StartLatLng:  []float64{40.4168, -3.7038},
		EndLatLng:    []float64{40.4201, -3.6999},
		AverageSpeed: 3.2,
		MaxSpeed:     4.1,
		AverageWatts: float(231),
		Splits: []domain.Split{
			{Split: 1, Distance: 1000, MovingTime: 310, ElapsedTime: 312, AverageSpeed: 3.2, AverageHeartrate: float(150)},
			{Split: 2, Distance: 1000, MovingTime: 305, ElapsedTime: 305, ElevationDifference: 2.1, AverageSpeed: 3.3},
		},
		BestEfforts: []domain.BestEffort{
			{BestEffortID: 7001, Name: "1k", Distance: 1000, MovingTime: 301, ElapsedTime: 301, StartDate: "2024-03-10T09:06:00+01:00"},
		},
	}
	for i := 1; i <= laps; i++ {
		record.Laps = append(record.Laps, domain.Lap{
			LapID:     int64(9000 + i),
			Lap:       i,
			Name:      "Lap",
			Distance:  1000,
			StartDate: "2024-03-10T09:00:00+01:00",
		})
	}
	return record
}

func TestRepositoryUpsertReplacesChildren(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	firstID, err := repo.Upsert(ctx, sampleRecord(11223344, 3))
	require.NoError(t, err)
	require.NotEmpty(t, firstID)

	updated := sampleRecord(11223344, 1)
	updated.Name = "Renamed Run"
	updated.AverageWatts = nil
	secondID, err := repo.Upsert(ctx, updated)
	require.NoError(t, err)
	require.Equal(t, firstID, secondID)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM strava_activities WHERE strava_id = $1`, int64(11223344)).Scan(&count))
	require.Equal(t, 1, count)

	var name string
	var watts *float64
	var startDate time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT name, average_watts, start_date FROM strava_activities WHERE id = $1`, firstID).Scan(&name, &watts, &startDate))
	require.Equal(t, "Renamed Run", name)
	require.Nil(t, watts)
	require.True(t, startDate.Equal(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))

	require.Equal(t, 1, countRows(t, ctx, pool, "strava_laps", firstID))
	require.Equal(t, 2, countRows(t, ctx, pool, "strava_splits", firstID))
	require.Equal(t, 1, countRows(t, ctx, pool, "strava_best_efforts", firstID))

	var synced int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type = $1 AND aggregate_id = $2`, events.TypeStravaActivitySynced, firstID).Scan(&synced))
	require.Equal(t, 2, synced)
}

func TestRepositoryKeepsLocalStartDates(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	id, err := repo.Upsert(ctx, sampleRecord(55667788, 1))
	require.NoError(t, err)

	var activityLocal string
	var startDate time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT start_date_local, start_date FROM strava_activities WHERE id = $1`, id).Scan(&activityLocal, &startDate))
	require.Equal(t, "2024-03-10T09:00:00+01:00", activityLocal)
	require.True(t, startDate.Equal(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))

	var lapLocal, effortLocal string
	require.NoError(t, pool.QueryRow(ctx, `SELECT start_date_local FROM strava_laps WHERE activity_id = $1`, id).Scan(&lapLocal))
	require.NoError(t, pool.QueryRow(ctx, `SELECT start_date_local FROM strava_best_efforts WHERE activity_id = $1`, id).Scan(&effortLocal))
	require.Equal(t, "2024-03-10T09:00:00+01:00", lapLocal)
	require.Equal(t, "2024-03-10T09:06:00+01:00", effortLocal)
}

func TestRepositoryConcurrentUpsertsKeepOneRecord(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(laps int) {
			defer wg.Done()
			_, err := repo.Upsert(ctx, sampleRecord(42, laps))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var id string
	require.NoError(t, pool.QueryRow(ctx, `SELECT id::text FROM strava_activities WHERE strava_id = 42`).Scan(&id))

	var lapIndexes []int
	rows, err := pool.Query(ctx, `SELECT lap FROM strava_laps WHERE activity_id = $1 ORDER BY lap`, id)
	require.NoError(t, err)
	for rows.Next() {
		var lap int
		require.NoError(t, rows.Scan(&lap))
		lapIndexes = append(lapIndexes, lap)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	require.NotEmpty(t, lapIndexes)
	for i, lap := range lapIndexes {
		require.Equal(t, i+1, lap, "children must come from a single upsert")
	}
}

func TestRepositoryRemove(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	result, err := repo.Remove(ctx, 999)
	require.NoError(t, err)
	require.Equal(t, domain.RemoveResult{OK: false, Message: "not found"}, result)

	id, err := repo.Upsert(ctx, sampleRecord(7, 2))
	require.NoError(t, err)

	result, err = repo.Remove(ctx, 7)
	require.NoError(t, err)
	require.True(t, result.OK)

	require.Zero(t, countRows(t, ctx, pool, "strava_laps", id))
	require.Zero(t, countRows(t, ctx, pool, "strava_splits", id))
	require.Zero(t, countRows(t, ctx, pool, "strava_best_efforts", id))

	var deleted int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type = $1 AND partition_key = '7'`, events.TypeStravaActivityDeleted).Scan(&deleted))
	require.Equal(t, 1, deleted)
}

func TestRepositoryRejectsUnparseableDates(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	record := sampleRecord(5, 1)
	record.Laps[0].StartDate = "yesterday"
	_, err := repo.Upsert(ctx, record)
	require.Error(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM strava_activities`).Scan(&count))
	require.Zero(t, count, "failed upsert must roll back the parent row")
}

func countRows(t *testing.T, ctx context.Context, pool *pgxpool.Pool, table, activityID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+" WHERE activity_id = $1", activityID).Scan(&n))
	return n
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("strava"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	files, err := filepath.Glob(filepath.Join(resolvePath(t, "../../../db/postgres/migrations"), "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		contents, readErr := os.ReadFile(file)
		require.NoErrorf(t, readErr, "read migration %s", file)
		_, execErr := pool.Exec(ctx, string(contents))
		require.NoErrorf(t, execErr, "execute migration %s", file)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
