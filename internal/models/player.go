package models

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// RawPlayerRecord is one ranked entry as it appears on the salary page.
// Values are copied verbatim from the markup; normalization happens later.
type RawPlayerRecord struct {
	ExternalID string
	Name       string
	TeamCode   string
	SalaryRaw  string
}

// PlayerRow is one player for one season in the players table.
// (ExternalID, Year) is the natural key.
type PlayerRow struct {
	ExternalID string        `db:"site_player_id"`
	Name       string        `db:"name"`
	TeamCode   string        `db:"team"`
	TeamID     int           `db:"team_id"`
	Year       int           `db:"year"`
	Salary     sql.NullInt64 `db:"salary"`
	RowHash    string        `db:"row_hash"`
	LastScrape time.Time     `db:"last_scrape"`
}

var salaryReplacer = strings.NewReplacer("$", "", "€", "", "£", "", ",", "")

// NormalizeSalary converts a currency-formatted amount such as "$12,345,678"
// to an integer. The second return value is false when the text does not
// contain a plain non-negative amount; the salary is then absent.
func NormalizeSalary(raw string) (sql.NullInt64, bool) {
	cleaned := strings.TrimSpace(salaryReplacer.Replace(raw))
	if cleaned == "" {
		return sql.NullInt64{}, false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return sql.NullInt64{}, false
		}
	}

	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return sql.NullInt64{}, false
	}
	return sql.NullInt64{Int64: amount, Valid: true}, true
}
