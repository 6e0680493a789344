package reconcile

import (
	"context"
	"sort"
	"sync"

	"nba_salaries/ingestion/internal/models"
)

type playerKey struct {
	externalID string
	year       int
}

// MemorySink is an in-memory Sink applying the same upsert rules as the
// database. Tests use it in place of PostgreSQL.
type MemorySink struct {
	mu      sync.Mutex
	nextID  int
	teams   map[string]models.Team
	players map[playerKey]models.PlayerRow

	TeamCalls   int
	PlayerCalls int
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{
		nextID:  1,
		teams:   make(map[string]models.Team),
		players: make(map[playerKey]models.PlayerRow),
	}
}

// UpsertTeams assigns ids to new codes and renames existing ones
func (s *MemorySink) UpsertTeams(_ context.Context, teams []models.Team) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TeamCalls++
	ids := make(map[string]int, len(teams))
	for _, team := range teams {
		existing, ok := s.teams[team.Code]
		if !ok {
			existing = models.Team{ID: s.nextID, Code: team.Code}
			s.nextID++
		}
		existing.Name = team.Name
		s.teams[team.Code] = existing
		ids[team.Code] = existing.ID
	}
	return ids, nil
}

// UpsertPlayers overwrites every non-key column of existing rows
func (s *MemorySink) UpsertPlayers(_ context.Context, rows []models.PlayerRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PlayerCalls++
	for _, row := range rows {
		s.players[playerKey{row.ExternalID, row.Year}] = row
	}
	return len(rows), nil
}

// Close is a no-op
func (s *MemorySink) Close() error {
	return nil
}

// Teams returns the stored teams ordered by code
func (s *MemorySink) Teams() []models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Team, 0, len(s.teams))
	for _, team := range s.teams {
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Player returns the stored row for (externalID, year)
func (s *MemorySink) Player(externalID string, year int) (models.PlayerRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.players[playerKey{externalID, year}]
	return row, ok
}

// PlayerCount returns the number of stored player rows
func (s *MemorySink) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.players)
}
