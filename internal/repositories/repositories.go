// package repositories provides persistence layer implementations for the model store contracts.
package repositories

import (
	"strings"
	"time"
)

// clock returns the current time. Repositories hold one so tests can pin it.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// toMillis and fromMillis convert between stored BIGINT timestamps and [time.Time].
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// isUniqueViolation matches the constraint errors reported by SQLite and PostgreSQL.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "SQLSTATE 23505")
}
