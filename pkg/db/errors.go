package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Acquisition failures returned by Manager.Get. All three mean "database
// unavailable right now"; callers degrade the single request and move on.
var (
	// ErrMissingCredentials means host, user, or password is not configured.
	ErrMissingCredentials = errors.New("database credentials not configured")

	// ErrCertificateUnavailable means secure mode needs trust material and
	// none could be obtained from the environment, disk, or the server.
	ErrCertificateUnavailable = errors.New("server certificate unavailable")

	// ErrConnectFailed means opening the connection pool failed.
	ErrConnectFailed = errors.New("database connection failed")
)

// ErrNotConnected is returned by the executor when called without a valid
// handle. Callers are expected to have handled unavailability already, so
// seeing this indicates a bug in the caller.
var ErrNotConnected = errors.New("not connected to database")

// QueryError wraps a statement execution failure with the original statement
// text and bound parameters for diagnostic logging.
type QueryError struct {
	SQL  string
	Args []any
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (sql: %q, args: %v)", e.Err, e.SQL, e.Args)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ShouldInvalidate reports whether a query failure looks like a dead
// connection rather than a statement-level error. A *pgconn.PgError means the
// server received and rejected the statement, so the connection is fine.
func ShouldInvalidate(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, ErrNotConnected) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
