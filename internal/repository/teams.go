package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nba_salaries/ingestion/internal/metrics"
	"nba_salaries/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// TeamRepository handles team database operations
type TeamRepository struct {
	db *Database
}

// UpsertMany inserts or renames all teams in one statement and returns the
// id for every code. The statement runs in its own transaction.
func (r *TeamRepository) UpsertMany(ctx context.Context, teams []models.Team) (map[string]int, error) {
	query := `
		INSERT INTO teams (code, name)
		SELECT * FROM unnest($1::text[], $2::text[])
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name
		RETURNING code, id
	`

	codes := make([]string, len(teams))
	names := make([]string, len(teams))
	for i, team := range teams {
		codes[i] = team.Code
		names[i] = team.Name
	}

	start := time.Now()
	ids, err := r.upsertMany(ctx, query, codes, names)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery("upsert", "teams", status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	log.Debug().Int("count", len(ids)).Msg("Teams upserted")
	return ids, nil
}

func (r *TeamRepository) upsertMany(ctx context.Context, query string, codes, names []string) (map[string]int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, &StoreError{Op: "begin", Table: "teams", Err: err}
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query, codes, names)
	if err != nil {
		return nil, &StoreError{Op: "upsert", Table: "teams", Err: err}
	}

	ids := make(map[string]int, len(codes))
	for rows.Next() {
		var (
			code string
			id   int
		)
		if err := rows.Scan(&code, &id); err != nil {
			rows.Close()
			return nil, &StoreError{Op: "scan", Table: "teams", Err: err}
		}
		ids[code] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "upsert", Table: "teams", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StoreError{Op: "commit", Table: "teams", Err: err}
	}

	return ids, nil
}

// GetByCode retrieves a team by its code
func (r *TeamRepository) GetByCode(ctx context.Context, code string) (*models.Team, error) {
	query := `
		SELECT id, code, name
		FROM teams
		WHERE code = $1
	`

	var team models.Team
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(&team.ID, &team.Code, &team.Name)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("team not found: code=%s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &team, nil
}

// List retrieves all teams
func (r *TeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT id, code, name
		FROM teams
		ORDER BY code
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.Code, &team.Name); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}

// Count returns the total number of teams
func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM teams`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}

	return count, nil
}
