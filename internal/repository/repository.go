package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code raised when an insert collides
// with a unique index.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether the error is a Postgres unique-index
// conflict. The engine leans on unique indexes as the concurrency safety
// net, so several services translate this into a typed rejection instead of
// an infrastructure failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
