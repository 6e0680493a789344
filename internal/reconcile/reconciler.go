// Package reconcile merges one scrape into durable storage.
//
// Writes happen in two phases. Phase 1 upserts every team referenced by the
// scrape and returns the store-assigned ids. Phase 2 upserts player rows that
// reference those ids. The sink commits phase 1 before phase 2 starts, so a
// player is never written before its team. A phase 2 failure leaves phase 1
// committed.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"nba_salaries/ingestion/internal/changedetect"
	"nba_salaries/ingestion/internal/metrics"
	"nba_salaries/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// Sink is the persistence boundary. Each call is one bulk statement in its
// own transaction: fully applied or fully rolled back.
type Sink interface {
	// UpsertTeams inserts or renames teams by code and returns code -> id
	UpsertTeams(ctx context.Context, teams []models.Team) (map[string]int, error)
	// UpsertPlayers inserts or overwrites rows keyed on (ExternalID, Year)
	UpsertPlayers(ctx context.Context, rows []models.PlayerRow) (int, error)
	Close() error
}

// Result summarizes phase 2.
//
// Considered counts every input record, including skipped ones; it is the
// figure historically reported as "processed". Written counts rows the sink
// acknowledged.
type Result struct {
	Considered      int
	Written         int
	SkippedNoTeam   int
	SkippedUnmapped int
	Duplicates      int
	SalaryMissing   int
}

// Reconciler coordinates the two upsert phases. It holds no state between
// calls.
type Reconciler struct {
	sink Sink
	now  func() time.Time
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithClock overrides the time source used for last_scrape
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a reconciler writing to sink
func New(sink Sink, opts ...Option) *Reconciler {
	r := &Reconciler{
		sink: sink,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpsertTeams writes all resolved teams in one statement, ordered by code,
// and returns the surrogate id per code
func (r *Reconciler) UpsertTeams(ctx context.Context, teams map[string]models.Team) (map[string]int, error) {
	if len(teams) == 0 {
		log.Warn().Msg("No teams to upsert")
		return map[string]int{}, nil
	}

	batch := make([]models.Team, 0, len(teams))
	for _, team := range teams {
		batch = append(batch, team)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Code < batch[j].Code })

	codeToID, err := r.sink.UpsertTeams(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert teams: %w", err)
	}

	for _, team := range batch {
		if _, ok := codeToID[team.Code]; !ok {
			return nil, fmt.Errorf("sink returned no id for team %s", team.Code)
		}
	}

	log.Info().Int("count", len(codeToID)).Msg("Teams upserted")
	return codeToID, nil
}

// UpsertPlayers builds one row per record whose team is present in codeToID
// and writes them in one statement keyed on (external id, year). Incoming
// values always overwrite stored ones.
func (r *Reconciler) UpsertPlayers(ctx context.Context, records []models.RawPlayerRecord, codeToID map[string]int, year int) (Result, error) {
	result := Result{Considered: len(records)}
	scrapedAt := r.now().UTC()

	rows := make([]models.PlayerRow, 0, len(records))
	position := make(map[string]int, len(records))

	for _, rec := range records {
		code := models.NormalizeTeamCode(rec.TeamCode)
		if code == "" {
			result.SkippedNoTeam++
			log.Debug().
				Str("player_id", rec.ExternalID).
				Str("player", rec.Name).
				Msg("Player has no team, skipping")
			continue
		}

		teamID, ok := codeToID[code]
		if !ok {
			result.SkippedUnmapped++
			log.Warn().
				Str("player_id", rec.ExternalID).
				Str("team_code", code).
				Msg("Team was not upserted, skipping player")
			continue
		}

		salary, ok := models.NormalizeSalary(rec.SalaryRaw)
		if !ok {
			result.SalaryMissing++
			metrics.RecordNormalizationWarning("salary")
			log.Warn().
				Str("player_id", rec.ExternalID).
				Str("player", rec.Name).
				Str("salary_raw", rec.SalaryRaw).
				Msg("Unparseable salary, storing as missing")
		}

		row := models.PlayerRow{
			ExternalID: rec.ExternalID,
			Name:       rec.Name,
			TeamCode:   code,
			TeamID:     teamID,
			Year:       year,
			Salary:     salary,
			RowHash:    changedetect.RowHash(rec.ExternalID, rec.Name, code, year, salary),
			LastScrape: scrapedAt,
		}

		// one statement cannot update the same key twice; the later entry wins
		if i, dup := position[rec.ExternalID]; dup {
			result.Duplicates++
			log.Warn().
				Str("player_id", rec.ExternalID).
				Msg("Player listed more than once, keeping last entry")
			rows[i] = row
			continue
		}
		position[rec.ExternalID] = len(rows)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		log.Warn().Int("considered", result.Considered).Msg("No player rows to upsert")
		return result, nil
	}

	written, err := r.sink.UpsertPlayers(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("failed to upsert players: %w", err)
	}
	result.Written = written

	log.Info().
		Int("considered", result.Considered).
		Int("written", result.Written).
		Int("skipped_no_team", result.SkippedNoTeam).
		Int("skipped_unmapped", result.SkippedUnmapped).
		Int("duplicates", result.Duplicates).
		Int("salary_missing", result.SalaryMissing).
		Msg("Players upserted")

	return result, nil
}
