package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"nba_salaries/ingestion/internal/changedetect"
	"nba_salaries/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// failingSink wraps MemorySink and fails the requested phase
type failingSink struct {
	*MemorySink
	failTeams   error
	failPlayers error
	dropCode    string
}

func (s *failingSink) UpsertTeams(ctx context.Context, teams []models.Team) (map[string]int, error) {
	if s.failTeams != nil {
		return nil, s.failTeams
	}
	ids, err := s.MemorySink.UpsertTeams(ctx, teams)
	delete(ids, s.dropCode)
	return ids, err
}

func (s *failingSink) UpsertPlayers(ctx context.Context, rows []models.PlayerRow) (int, error) {
	if s.failPlayers != nil {
		return 0, s.failPlayers
	}
	return s.MemorySink.UpsertPlayers(ctx, rows)
}

func TestUpsertTeams_Idempotent(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	r := New(sink, WithClock(clock))

	teams := map[string]models.Team{
		"DEN": {Code: "DEN", Name: "Denver Nuggets"},
		"BOS": {Code: "BOS", Name: "Boston Celtics"},
	}

	first, err := r.UpsertTeams(ctx, teams)
	require.NoError(t, err)
	second, err := r.UpsertTeams(ctx, teams)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, sink.Teams(), 2)
	// sorted by code before the sink assigns ids
	assert.Equal(t, map[string]int{"BOS": 1, "DEN": 2}, first)
}

func TestUpsertTeams_NameUpdatesOnConflict(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	r := New(sink)

	_, err := r.UpsertTeams(ctx, map[string]models.Team{"XYZ": {Code: "XYZ", Name: "Unknown"}})
	require.NoError(t, err)
	ids, err := r.UpsertTeams(ctx, map[string]models.Team{"XYZ": {Code: "XYZ", Name: "Expansion Team"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"XYZ": 1}, ids)
	assert.Equal(t, []models.Team{{ID: 1, Code: "XYZ", Name: "Expansion Team"}}, sink.Teams())
}

func TestUpsertTeams_EmptyDoesNotCallSink(t *testing.T) {
	sink := NewMemorySink()
	ids, err := New(sink).UpsertTeams(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 0, sink.TeamCalls)
}

func TestUpsertTeams_MissingIDIsAnError(t *testing.T) {
	sink := &failingSink{MemorySink: NewMemorySink(), dropCode: "DEN"}
	_, err := New(sink).UpsertTeams(context.Background(), map[string]models.Team{
		"DEN": {Code: "DEN", Name: "Denver Nuggets"},
	})
	assert.Error(t, err)
}

func TestUpsertTeams_SinkError(t *testing.T) {
	boom := errors.New("connection reset")
	sink := &failingSink{MemorySink: NewMemorySink(), failTeams: boom}

	_, err := New(sink).UpsertTeams(context.Background(), map[string]models.Team{
		"DEN": {Code: "DEN", Name: "Denver Nuggets"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestUpsertPlayers_BuildsRows(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	r := New(sink, WithClock(clock))

	records := []models.RawPlayerRecord{
		{ExternalID: "84769", Name: "Nikola Jokic", TeamCode: "DEN", SalaryRaw: "$51,415,938"},
		{ExternalID: "1", Name: "No Salary", TeamCode: "den ", SalaryRaw: "-"},
	}

	result, err := r.UpsertPlayers(ctx, records, map[string]int{"DEN": 7}, 2025)
	require.NoError(t, err)
	assert.Equal(t, Result{Considered: 2, Written: 2, SalaryMissing: 1}, result)

	jokic, ok := sink.Player("84769", 2025)
	require.True(t, ok)
	assert.Equal(t, 7, jokic.TeamID)
	assert.Equal(t, "DEN", jokic.TeamCode)
	assert.Equal(t, int64(51415938), jokic.Salary.Int64)
	assert.True(t, jokic.Salary.Valid)
	assert.Equal(t, fixedNow, jokic.LastScrape)
	assert.Equal(t, changedetect.RowHash("84769", "Nikola Jokic", "DEN", 2025, jokic.Salary), jokic.RowHash)

	noSalary, ok := sink.Player("1", 2025)
	require.True(t, ok)
	assert.False(t, noSalary.Salary.Valid)
	assert.Equal(t, "DEN", noSalary.TeamCode)
}

func TestUpsertPlayers_NeverWritesOrphans(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	r := New(sink, WithClock(clock))

	records := []models.RawPlayerRecord{
		{ExternalID: "1", Name: "Has Team", TeamCode: "BOS", SalaryRaw: "$1"},
		{ExternalID: "2", Name: "Free Agent", TeamCode: "", SalaryRaw: "$2"},
		{ExternalID: "3", Name: "Unmapped", TeamCode: "XYZ", SalaryRaw: "$3"},
	}
	codeToID := map[string]int{"BOS": 1}

	result, err := r.UpsertPlayers(ctx, records, codeToID, 2025)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Considered)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.SkippedNoTeam)
	assert.Equal(t, 1, result.SkippedUnmapped)
	assert.Equal(t, 1, sink.PlayerCount())

	for _, id := range []string{"2", "3"} {
		_, ok := sink.Player(id, 2025)
		assert.False(t, ok, "player %s must not be written", id)
	}
}

func TestUpsertPlayers_IdempotentAndDetectsChange(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	r := New(sink, WithClock(clock))
	codeToID := map[string]int{"DEN": 1}

	records := []models.RawPlayerRecord{
		{ExternalID: "84769", Name: "Nikola Jokic", TeamCode: "DEN", SalaryRaw: "$51,415,938"},
	}

	_, err := r.UpsertPlayers(ctx, records, codeToID, 2025)
	require.NoError(t, err)
	before, _ := sink.Player("84769", 2025)

	_, err = r.UpsertPlayers(ctx, records, codeToID, 2025)
	require.NoError(t, err)
	again, _ := sink.Player("84769", 2025)
	assert.Equal(t, before.RowHash, again.RowHash)
	assert.Equal(t, 1, sink.PlayerCount())

	records[0].SalaryRaw = "$55,224,526"
	_, err = r.UpsertPlayers(ctx, records, codeToID, 2025)
	require.NoError(t, err)
	after, _ := sink.Player("84769", 2025)

	assert.NotEqual(t, before.RowHash, after.RowHash)
	assert.Equal(t, int64(55224526), after.Salary.Int64)
	assert.Equal(t, 1, sink.PlayerCount())

	// another season is a separate row
	_, err = r.UpsertPlayers(ctx, records, codeToID, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, sink.PlayerCount())
}

func TestUpsertPlayers_DuplicateKeepsLast(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	r := New(sink, WithClock(clock))

	records := []models.RawPlayerRecord{
		{ExternalID: "9", Name: "Traded Player", TeamCode: "BOS", SalaryRaw: "$1"},
		{ExternalID: "9", Name: "Traded Player", TeamCode: "NYK", SalaryRaw: "$1"},
	}

	result, err := r.UpsertPlayers(ctx, records, map[string]int{"BOS": 1, "NYK": 2}, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Written)

	row, ok := sink.Player("9", 2025)
	require.True(t, ok)
	assert.Equal(t, "NYK", row.TeamCode)
	assert.Equal(t, 2, row.TeamID)
}

func TestUpsertPlayers_NothingToWrite(t *testing.T) {
	sink := NewMemorySink()
	result, err := New(sink).UpsertPlayers(context.Background(), []models.RawPlayerRecord{
		{ExternalID: "1", Name: "Free Agent", SalaryRaw: "$1"},
	}, map[string]int{}, 2025)
	require.NoError(t, err)
	assert.Equal(t, Result{Considered: 1, SkippedNoTeam: 1}, result)
	assert.Equal(t, 0, sink.PlayerCalls)
}

func TestUpsertPlayers_SinkError(t *testing.T) {
	boom := errors.New("deadlock detected")
	sink := &failingSink{MemorySink: NewMemorySink(), failPlayers: boom}

	result, err := New(sink).UpsertPlayers(context.Background(), []models.RawPlayerRecord{
		{ExternalID: "1", Name: "A", TeamCode: "BOS", SalaryRaw: "$1"},
	}, map[string]int{"BOS": 1}, 2025)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, result.Written)
	assert.Equal(t, 1, result.Considered)
}
