// Package export writes a scrape to CSV files instead of PostgreSQL.
//
// Each call rewrites its file in full, so repeated runs over the same scrape
// produce identical output. Files are written to a temporary name and renamed
// into place; a failed write leaves the previous file untouched.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"nba_salaries/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	TeamsFile   = "teams.csv"
	PlayersFile = "players.csv"

	// timestamptz literal accepted by COPY
	pgTS = "2006-01-02 15:04:05.000000-07"
)

var (
	teamsHeader   = []string{"code", "name"}
	playersHeader = []string{"site_player_id", "name", "team", "year", "salary", "row_hash", "last_scrape"}
)

// WriteError reports a failed file write
type WriteError struct {
	File string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.File, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// CSVSink satisfies reconcile.Sink by writing teams.csv and players.csv into
// a directory
type CSVSink struct {
	dir string
	mu  sync.Mutex
}

// NewCSVSink creates dir if needed and returns a sink writing into it
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// Dir returns the output directory
func (s *CSVSink) Dir() string {
	return s.dir
}

// UpsertTeams writes teams sorted by code and numbers them 1..n in that order
func (s *CSVSink) UpsertTeams(ctx context.Context, teams []models.Team) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := make([]models.Team, len(teams))
	copy(sorted, teams)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	ids := make(map[string]int, len(sorted))
	records := make([][]string, 0, len(sorted))
	for _, team := range sorted {
		if _, seen := ids[team.Code]; seen {
			// later name wins, same as ON CONFLICT DO UPDATE
			records[len(records)-1][1] = team.Name
			continue
		}
		ids[team.Code] = len(ids) + 1
		records = append(records, []string{team.Code, team.Name})
	}

	if err := s.write(TeamsFile, teamsHeader, records); err != nil {
		return nil, err
	}

	log.Info().Str("file", filepath.Join(s.dir, TeamsFile)).Int("count", len(records)).Msg("Teams exported")
	return ids, nil
}

// UpsertPlayers writes rows sorted by team code, then site id
func (s *CSVSink) UpsertPlayers(ctx context.Context, rows []models.PlayerRow) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	sorted := make([]models.PlayerRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TeamCode != sorted[j].TeamCode {
			return sorted[i].TeamCode < sorted[j].TeamCode
		}
		return sorted[i].ExternalID < sorted[j].ExternalID
	})

	records := make([][]string, 0, len(sorted))
	for _, row := range sorted {
		salary := ""
		if row.Salary.Valid {
			salary = strconv.FormatInt(row.Salary.Int64, 10)
		}
		records = append(records, []string{
			row.ExternalID,
			row.Name,
			row.TeamCode,
			strconv.Itoa(row.Year),
			salary,
			row.RowHash,
			row.LastScrape.UTC().Format(pgTS),
		})
	}

	if err := s.write(PlayersFile, playersHeader, records); err != nil {
		return 0, err
	}

	log.Info().Str("file", filepath.Join(s.dir, PlayersFile)).Int("count", len(records)).Msg("Players exported")
	return len(records), nil
}

// Close is a no-op; every write is flushed before it returns
func (s *CSVSink) Close() error {
	return nil
}

func (s *CSVSink) write(name string, header []string, records [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return &WriteError{File: name, Err: err}
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return &WriteError{File: name, Err: err}
	}
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return &WriteError{File: name, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &WriteError{File: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{File: name, Err: err}
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return &WriteError{File: name, Err: err}
	}
	return nil
}
