package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nba_salaries/ingestion/internal/metrics"
	"nba_salaries/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PlayerRepository handles player salary database operations
type PlayerRepository struct {
	db *Database
}

// UpsertMany writes all rows in one statement keyed on (site_player_id, year).
// Existing rows have every non-key column overwritten.
func (r *PlayerRepository) UpsertMany(ctx context.Context, rows []models.PlayerRow) (int, error) {
	query := `
		INSERT INTO players (site_player_id, name, team, team_id, year, salary, row_hash, last_scrape)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::int[],
			$5::int[], $6::bigint[], $7::text[], $8::timestamptz[]
		)
		ON CONFLICT (site_player_id, year) DO UPDATE SET
			name = EXCLUDED.name,
			team = EXCLUDED.team,
			team_id = EXCLUDED.team_id,
			salary = EXCLUDED.salary,
			row_hash = EXCLUDED.row_hash,
			last_scrape = EXCLUDED.last_scrape
	`

	var (
		ids      = make([]string, len(rows))
		names    = make([]string, len(rows))
		teams    = make([]string, len(rows))
		teamIDs  = make([]int32, len(rows))
		years    = make([]int32, len(rows))
		salaries = make([]*int64, len(rows))
		hashes   = make([]string, len(rows))
		scraped  = make([]time.Time, len(rows))
	)
	for i, row := range rows {
		ids[i] = row.ExternalID
		names[i] = row.Name
		teams[i] = row.TeamCode
		teamIDs[i] = int32(row.TeamID)
		years[i] = int32(row.Year)
		if row.Salary.Valid {
			salary := row.Salary.Int64
			salaries[i] = &salary
		}
		hashes[i] = row.RowHash
		scraped[i] = row.LastScrape
	}

	start := time.Now()
	written, err := r.exec(ctx, query, ids, names, teams, teamIDs, years, salaries, hashes, scraped)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery("upsert", "players", status, time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}

	log.Debug().Int("count", written).Msg("Players upserted")
	return written, nil
}

func (r *PlayerRepository) exec(ctx context.Context, query string, args ...any) (int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, &StoreError{Op: "begin", Table: "players", Err: err}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, &StoreError{Op: "upsert", Table: "players", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &StoreError{Op: "commit", Table: "players", Err: err}
	}

	return int(tag.RowsAffected()), nil
}

// GetByKey retrieves one player row by site id and season
func (r *PlayerRepository) GetByKey(ctx context.Context, externalID string, year int) (*models.PlayerRow, error) {
	query := `
		SELECT site_player_id, name, team, team_id, year, salary, row_hash, last_scrape
		FROM players
		WHERE site_player_id = $1 AND year = $2
	`

	var (
		row    models.PlayerRow
		salary *int64
	)
	err := r.db.Pool.QueryRow(ctx, query, externalID, year).Scan(
		&row.ExternalID,
		&row.Name,
		&row.TeamCode,
		&row.TeamID,
		&row.Year,
		&salary,
		&row.RowHash,
		&row.LastScrape,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player not found: site_player_id=%s year=%d", externalID, year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	if salary != nil {
		row.Salary = sql.NullInt64{Int64: *salary, Valid: true}
	}

	return &row, nil
}

// CountByYear returns the number of player rows stored for a season
func (r *PlayerRepository) CountByYear(ctx context.Context, year int) (int, error) {
	query := `SELECT COUNT(*) FROM players WHERE year = $1`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, year).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}

	return count, nil
}
