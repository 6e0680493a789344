package teams

import (
	"nba_salaries/ingestion/internal/metrics"
	"nba_salaries/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// Unknown is the display name given to codes missing from the lookup table
const Unknown = "Unknown"

// DefaultNames returns the code to full-name table for the 30 NBA franchises,
// keyed by the abbreviations used on the salary rankings page
func DefaultNames() map[string]string {
	return map[string]string{
		"ATL": "Atlanta Hawks",
		"BOS": "Boston Celtics",
		"BKN": "Brooklyn Nets",
		"CHA": "Charlotte Hornets",
		"CHI": "Chicago Bulls",
		"CLE": "Cleveland Cavaliers",
		"DAL": "Dallas Mavericks",
		"DEN": "Denver Nuggets",
		"DET": "Detroit Pistons",
		"GSW": "Golden State Warriors",
		"HOU": "Houston Rockets",
		"IND": "Indiana Pacers",
		"LAC": "Los Angeles Clippers",
		"LAL": "Los Angeles Lakers",
		"MEM": "Memphis Grizzlies",
		"MIA": "Miami Heat",
		"MIL": "Milwaukee Bucks",
		"MIN": "Minnesota Timberwolves",
		"NOP": "New Orleans Pelicans",
		"NYK": "New York Knicks",
		"OKC": "Oklahoma City Thunder",
		"ORL": "Orlando Magic",
		"PHI": "Philadelphia 76ers",
		"PHX": "Phoenix Suns",
		"POR": "Portland Trail Blazers",
		"SAC": "Sacramento Kings",
		"SAS": "San Antonio Spurs",
		"TOR": "Toronto Raptors",
		"UTA": "Utah Jazz",
		"WAS": "Washington Wizards",
	}
}

// Resolver maps scraped team codes to canonical teams.
// The lookup table is copied at construction and never mutated.
type Resolver struct {
	names map[string]string
}

// NewResolver creates a resolver over a copy of names. Keys are normalized.
func NewResolver(names map[string]string) *Resolver {
	table := make(map[string]string, len(names))
	for code, name := range names {
		table[models.NormalizeTeamCode(code)] = name
	}
	return &Resolver{names: table}
}

// Name returns the display name for a code and whether the code is known
func (r *Resolver) Name(code string) (string, bool) {
	name, ok := r.names[models.NormalizeTeamCode(code)]
	if !ok {
		return Unknown, false
	}
	return name, true
}

// Resolve derives one team per distinct normalized code referenced by records.
// Records without a team code are ignored.
func (r *Resolver) Resolve(records []models.RawPlayerRecord) map[string]models.Team {
	resolved := make(map[string]models.Team)

	for _, rec := range records {
		code := models.NormalizeTeamCode(rec.TeamCode)
		if code == "" {
			continue
		}
		if _, seen := resolved[code]; seen {
			continue
		}

		name, known := r.Name(code)
		if !known {
			log.Warn().
				Str("team_code", code).
				Str("player", rec.Name).
				Msg("Unmapped team code, using sentinel name")
			metrics.RecordNormalizationWarning("unknown_team")
		}

		resolved[code] = models.Team{Code: code, Name: name}
	}

	return resolved
}
