package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// gendry renders limits MySQL style as "LIMIT ?, ?" bound to offset then count.
var limitPair = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry query into a postgres one: the limit pair becomes
// LIMIT ? OFFSET ? with its args swapped, then placeholders become $n.
// The caller's args slice is left untouched.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := limitPair.FindStringIndex(query); loc != nil {
		idx := strings.Count(query[:loc[0]], "?")
		if idx+1 < len(args) {
			swapped := append([]interface{}(nil), args...)
			swapped[idx], swapped[idx+1] = swapped[idx+1], swapped[idx]
			args = swapped
			query = query[:loc[0]] + "LIMIT ? OFFSET ?" + query[loc[1]:]
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// IsConflict reports whether err is a unique constraint violation.
func IsConflict(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
