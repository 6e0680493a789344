// Package changedetect computes the row hash stored alongside every player
// row. Downstream consumers compare hashes instead of every column to find
// rows that changed between scrapes.
package changedetect

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	// Delimiter separates the hashed fields.
	Delimiter = "|"
	// AbsentSalary stands in for a missing salary.
	AbsentSalary = "NULL"
)

// RowHash returns the hex SHA-256 digest of
// externalID|name|teamCode|year|salary. The output for a given input never
// changes between runs or releases; existing rows depend on it.
//
// Fields are joined without escaping, so a Delimiter inside a field can
// collide with a neighbouring split: RowHash("1|a", "b", ...) equals
// RowHash("1", "a|b", ...). Changing a single field still changes the digest.
func RowHash(externalID, name, teamCode string, year int, salary sql.NullInt64) string {
	salaryText := AbsentSalary
	if salary.Valid {
		salaryText = strconv.FormatInt(salary.Int64, 10)
	}

	payload := strings.Join([]string{
		externalID,
		name,
		teamCode,
		strconv.Itoa(year),
		salaryText,
	}, Delimiter)

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
