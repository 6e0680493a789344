//go:build integration

package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"nba_salaries/ingestion/internal/changedetect"
	"nba_salaries/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jokicRow(teamID int, salary int64, scraped time.Time) models.PlayerRow {
	s := sql.NullInt64{Int64: salary, Valid: true}
	return models.PlayerRow{
		ExternalID: "84769",
		Name:       "Nikola Jokic",
		TeamCode:   "DEN",
		TeamID:     teamID,
		Year:       2025,
		Salary:     s,
		RowHash:    changedetect.RowHash("84769", "Nikola Jokic", "DEN", 2025, s),
		LastScrape: scraped,
	}
}

func TestPlayerRepository_UpsertManyIdempotent(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids, err := db.UpsertTeams(ctx, []models.Team{{Code: "DEN", Name: "Denver Nuggets"}})
	require.NoError(t, err)

	scraped := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	row := jokicRow(ids["DEN"], 51415938, scraped)

	written, err := db.UpsertPlayers(ctx, []models.PlayerRow{row})
	require.NoError(t, err, "Should insert player")
	assert.Equal(t, 1, written)

	_, err = db.UpsertPlayers(ctx, []models.PlayerRow{row})
	require.NoError(t, err, "Should upsert player again")

	count, err := db.Players.CountByYear(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Should keep one row per (site_player_id, year)")

	stored, err := db.Players.GetByKey(ctx, "84769", 2025)
	require.NoError(t, err)
	assert.Equal(t, row.RowHash, stored.RowHash)
	assert.Equal(t, ids["DEN"], stored.TeamID)
	assert.True(t, stored.LastScrape.Equal(scraped))
}

func TestPlayerRepository_SalaryChangeUpdatesHash(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids, err := db.UpsertTeams(ctx, []models.Team{{Code: "DEN", Name: "Denver Nuggets"}})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	before := jokicRow(ids["DEN"], 51415938, now)
	_, err = db.UpsertPlayers(ctx, []models.PlayerRow{before})
	require.NoError(t, err)

	after := jokicRow(ids["DEN"], 55224526, now.Add(time.Hour))
	_, err = db.UpsertPlayers(ctx, []models.PlayerRow{after})
	require.NoError(t, err)

	stored, err := db.Players.GetByKey(ctx, "84769", 2025)
	require.NoError(t, err)
	assert.NotEqual(t, before.RowHash, stored.RowHash, "Hash should follow the new salary")
	assert.Equal(t, after.RowHash, stored.RowHash)
	assert.Equal(t, int64(55224526), stored.Salary.Int64)
}

func TestPlayerRepository_NullSalary(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids, err := db.UpsertTeams(ctx, []models.Team{{Code: "BOS", Name: "Boston Celtics"}})
	require.NoError(t, err)

	row := models.PlayerRow{
		ExternalID: "99999",
		Name:       "Unsigned Veteran",
		TeamCode:   "BOS",
		TeamID:     ids["BOS"],
		Year:       2025,
		RowHash:    changedetect.RowHash("99999", "Unsigned Veteran", "BOS", 2025, sql.NullInt64{}),
		LastScrape: time.Now().UTC(),
	}
	_, err = db.UpsertPlayers(ctx, []models.PlayerRow{row})
	require.NoError(t, err)

	stored, err := db.Players.GetByKey(ctx, "99999", 2025)
	require.NoError(t, err)
	assert.False(t, stored.Salary.Valid, "Absent salary should be stored as NULL")
}

func TestPlayerRepository_UnknownTeamRollsBack(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	row := jokicRow(424242, 1, time.Now().UTC())
	_, err := db.UpsertPlayers(ctx, []models.PlayerRow{row})
	require.Error(t, err, "Foreign key violation should fail the phase")

	var storeErr *StoreError
	assert.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "players", storeErr.Table)

	count, err := db.Players.CountByYear(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Nothing should be committed")
}
