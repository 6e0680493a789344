package models

import (
	"strings"
)

// Team represents an NBA franchise as stored in the teams table
type Team struct {
	ID   int    `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

// NormalizeTeamCode trims and upper-cases a scraped team abbreviation.
// An empty result means the player has no current team.
func NormalizeTeamCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
