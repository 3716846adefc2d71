package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/events"
	"example.com/stravasync/internal/observability"
)

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const upsertActivity = `INSERT INTO strava_activities (strava_id, external_id, name, distance, moving_time, elapsed_time,
        total_elevation_gain, elev_high, elev_low, sport_type, start_date, location_city, location_country,
        start_latlng, end_latlng, map, average_speed, max_speed, average_cadence, average_heartrate, max_heartrate,
        kilojoules, average_watts, max_watts, weighted_average_watts, description, calories, device_name, start_date_local)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
        ON CONFLICT (strava_id) DO UPDATE SET
            external_id = EXCLUDED.external_id,
            name = EXCLUDED.name,
            distance = EXCLUDED.distance,
            moving_time = EXCLUDED.moving_time,
            elapsed_time = EXCLUDED.elapsed_time,
            total_elevation_gain = EXCLUDED.total_elevation_gain,
            elev_high = EXCLUDED.elev_high,
            elev_low = EXCLUDED.elev_low,
            sport_type = EXCLUDED.sport_type,
            start_date = EXCLUDED.start_date,
            start_date_local = EXCLUDED.start_date_local,
            location_city = EXCLUDED.location_city,
            location_country = EXCLUDED.location_country,
            start_latlng = EXCLUDED.start_latlng,
            end_latlng = EXCLUDED.end_latlng,
            map = EXCLUDED.map,
            average_speed = EXCLUDED.average_speed,
            max_speed = EXCLUDED.max_speed,
            average_cadence = EXCLUDED.average_cadence,
            average_heartrate = EXCLUDED.average_heartrate,
            max_heartrate = EXCLUDED.max_heartrate,
            kilojoules = EXCLUDED.kilojoules,
            average_watts = EXCLUDED.average_watts,
            max_watts = EXCLUDED.max_watts,
            weighted_average_watts = EXCLUDED.weighted_average_watts,
            description = EXCLUDED.description,
            calories = EXCLUDED.calories,
            device_name = EXCLUDED.device_name,
            updated_at = NOW()
        RETURNING id::text`

// childTables are replaced wholesale on every upsert.
var childTables = []string{"strava_splits", "strava_laps", "strava_best_efforts"}

// Upsert creates or replaces the activity keyed by strava_id together with all of its splits,
// laps and best efforts, and records a synced event, inside a single transaction. Concurrent
// upserts of the same strava_id serialize on the parent row lock.
func (r *Repository) Upsert(ctx context.Context, record domain.ActivityRecord) (id string, err error) {
	startDate, err := parseDate(record.StartDate)
	if err != nil {
		return "", fmt.Errorf("activity %d start_date: %w", record.StravaID, err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx, upsertActivity,
		record.StravaID,
		record.ExternalID,
		record.Name,
		record.Distance,
		record.MovingTime,
		record.ElapsedTime,
		record.TotalElevationGain,
		record.ElevHigh,
		record.ElevLow,
		record.SportType,
		startDate,
		record.LocationCity,
		record.LocationCountry,
		record.StartLatLng,
		record.EndLatLng,
		record.Map,
		record.AverageSpeed,
		record.MaxSpeed,
		record.AverageCadence,
		record.AverageHeartrate,
		record.MaxHeartrate,
		record.Kilojoules,
		record.AverageWatts,
		record.MaxWatts,
		record.WeightedAverageWatts,
		record.Description,
		record.Calories,
		record.DeviceName,
		record.StartDate,
	).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, table := range childTables {
		if _, err = tx.Exec(ctx, "DELETE FROM "+table+" WHERE activity_id = $1", id); err != nil {
			return "", err
		}
	}

	if err = r.insertChildren(ctx, tx, id, record); err != nil {
		return "", err
	}

	now := r.now()
	if err = r.insertOutbox(ctx, tx, aggregate{ID: id, StravaID: record.StravaID}, events.TypeStravaActivitySynced, events.StravaActivitySynced{
		ActivityID:  id,
		StravaID:    record.StravaID,
		Name:        record.Name,
		SportType:   record.SportType,
		StartDate:   record.StartDate,
		Distance:    record.Distance,
		MovingTime:  record.MovingTime,
		SplitCount:  len(record.Splits),
		LapCount:    len(record.Laps),
		EffortCount: len(record.BestEfforts),
		SyncedAt:    now,
	}); err != nil {
		return "", err
	}

	if err = tx.Commit(ctx); err != nil {
		return "", err
	}
	observability.RecordActivityPersisted(now)
	observability.RecordChildRows("strava_splits", len(record.Splits))
	observability.RecordChildRows("strava_laps", len(record.Laps))
	observability.RecordChildRows("strava_best_efforts", len(record.BestEfforts))
	return id, nil
}

func (r *Repository) insertChildren(ctx context.Context, tx pgx.Tx, activityID string, record domain.ActivityRecord) error {
	batch := &pgx.Batch{}

	for _, s := range record.Splits {
		batch.Queue(`INSERT INTO strava_splits (activity_id, split, distance, moving_time, elapsed_time, elevation_difference, average_speed, average_heartrate)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			activityID, s.Split, s.Distance, s.MovingTime, s.ElapsedTime, s.ElevationDifference, s.AverageSpeed, s.AverageHeartrate)
	}

	for _, l := range record.Laps {
		startDate, err := parseDate(l.StartDate)
		if err != nil {
			return fmt.Errorf("lap %d start_date: %w", l.LapID, err)
		}
		batch.Queue(`INSERT INTO strava_laps (activity_id, lap_id, lap, name, distance, moving_time, elapsed_time, total_elevation_gain,
                start_date, average_speed, max_speed, average_cadence, average_heartrate, max_heartrate, average_watts, start_date_local)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			activityID, l.LapID, l.Lap, l.Name, l.Distance, l.MovingTime, l.ElapsedTime, l.TotalElevationGain,
			startDate, l.AverageSpeed, l.MaxSpeed, l.AverageCadence, l.AverageHeartrate, l.MaxHeartrate, l.AverageWatts, l.StartDate)
	}

	for i, e := range record.BestEfforts {
		startDate, err := parseDate(e.StartDate)
		if err != nil {
			return fmt.Errorf("best effort %d start_date: %w", e.BestEffortID, err)
		}
		batch.Queue(`INSERT INTO strava_best_efforts (activity_id, position, best_effort_id, name, distance, moving_time, elapsed_time, start_date, start_date_local)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			activityID, i, e.BestEffortID, e.Name, e.Distance, e.MovingTime, e.ElapsedTime, startDate, e.StartDate)
	}

	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Remove deletes the activity keyed by strava_id; children cascade. An absent activity is
// reported as RemoveResult{OK: false, Message: "not found"} with a nil error.
func (r *Repository) Remove(ctx context.Context, stravaID int64) (result domain.RemoveResult, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.RemoveResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var id string
	err = tx.QueryRow(ctx, `DELETE FROM strava_activities WHERE strava_id = $1 RETURNING id::text`, stravaID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		if err = tx.Commit(ctx); err != nil {
			return domain.RemoveResult{}, err
		}
		return domain.RemoveResult{OK: false, Message: "not found"}, nil
	}
	if err != nil {
		return domain.RemoveResult{}, err
	}

	now := r.now()
	if err = r.insertOutbox(ctx, tx, aggregate{ID: id, StravaID: stravaID}, events.TypeStravaActivityDeleted, events.StravaActivityDeleted{
		ActivityID: id,
		StravaID:   stravaID,
		DeletedAt:  now,
	}); err != nil {
		return domain.RemoveResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.RemoveResult{}, err
	}
	observability.RecordActivityRemoved(now)
	return domain.RemoveResult{OK: true}, nil
}

// aggregate identifies the activity an outbox event belongs to.
type aggregate struct {
	ID       string
	StravaID int64
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, agg aggregate, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(agg)
	dedupeKey := fmt.Sprintf("%d:%s:%d", agg.StravaID, eventType, r.now().UnixNano())

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"strava_activity",
		agg.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// parseDate reads the offset timestamps produced by the normalizer.
func parseDate(value string) (time.Time, error) {
	return time.Parse(domain.DateLayout, value)
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(aggregate) string
}

// Both event types share a topic keyed by strava_id so consumers see them in order per activity.
// Subjects follow the topic-record naming strategy since the topic carries two record types.
var eventCatalog = map[string]EventMetadata{
	events.TypeStravaActivitySynced: {
		Topic:         events.TopicStravaActivities,
		SchemaSubject: events.TopicStravaActivities + "-" + events.TypeStravaActivitySynced,
		PartitionKeyFn: func(a aggregate) string {
			return strconv.FormatInt(a.StravaID, 10)
		},
	},
	events.TypeStravaActivityDeleted: {
		Topic:         events.TopicStravaActivities,
		SchemaSubject: events.TopicStravaActivities + "-" + events.TypeStravaActivityDeleted,
		PartitionKeyFn: func(a aggregate) string {
			return strconv.FormatInt(a.StravaID, 10)
		},
	},
}
