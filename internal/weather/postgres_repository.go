package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL observation repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save inserts observations in one batch. Conflicts on (mac_address, dateutc) are ignored.
func (r *PostgresRepository) Save(ctx context.Context, mac string, observations []*Observation) (int, error) {
	query := `
		INSERT INTO weather_observations (mac_address, dateutc, observed_at, quantities, extra)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mac_address, dateutc) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		batch.Queue(query, mac, obs.DateUTC, obs.Date, obs.Quantities, obs.Extra)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	stored := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return stored, fmt.Errorf("inserting observation %d: %w", i, err)
		}
		stored += int(tag.RowsAffected())
	}

	return stored, nil
}

// Both reads order by dateutc, the station epoch in the primary key, to
// match InMemoryRepository.
const (
	listObservationsQuery = `
		SELECT dateutc, observed_at, quantities, extra
		FROM weather_observations
		WHERE mac_address = $1
		  AND ($2::timestamptz IS NULL OR observed_at >= $2)
		  AND ($3::timestamptz IS NULL OR observed_at <= $3)
		ORDER BY dateutc DESC
		LIMIT $4
	`

	latestObservationQuery = `
		SELECT dateutc, observed_at, quantities, extra
		FROM weather_observations
		WHERE mac_address = $1
		ORDER BY dateutc DESC
		LIMIT 1
	`
)

// List returns archived observations newest first.
func (r *PostgresRepository) List(ctx context.Context, mac string, q HistoryQuery) ([]*Observation, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.pool.Query(ctx, listObservationsQuery, mac, nullableTime(q.From), nullableTime(q.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return observations, nil
}

// Latest returns the most recent archived observation.
func (r *PostgresRepository) Latest(ctx context.Context, mac string) (*Observation, error) {
	obs, err := scanObservation(r.pool.QueryRow(ctx, latestObservationQuery, mac))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoObservations
		}
		return nil, err
	}
	return obs, nil
}

func scanObservation(row pgx.Row) (*Observation, error) {
	obs := &Observation{}
	if err := row.Scan(&obs.DateUTC, &obs.Date, &obs.Quantities, &obs.Extra); err != nil {
		return nil, err
	}
	obs.Date = obs.Date.UTC()
	if obs.Quantities == nil {
		obs.Quantities = make(map[string]Quantity)
	}
	if obs.Extra == nil {
		obs.Extra = make(map[string]any)
	}
	return obs, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
