package db

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RowSet is the one normalized result shape queries produce: an ordered
// column list and rows of driver values in column order. CommandTag carries
// the server's completion tag for statements that return no rows.
type RowSet struct {
	Columns    []string
	Rows       [][]any
	CommandTag string
}

// Len returns the number of rows.
func (rs *RowSet) Len() int {
	return len(rs.Rows)
}

// Executor runs parameterized statements against a Handle and normalizes the
// driver's result shape. Parameters are always bound positionally, never
// interpolated into the statement text.
type Executor struct {
	logger zerolog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(logger zerolog.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs a statement with positional parameters and returns the
// normalized rows. A nil handle is a caller bug and yields ErrNotConnected;
// any execution failure is wrapped as a QueryError carrying the statement
// and parameters.
func (e *Executor) Execute(ctx context.Context, h *Handle, sqlText string, args []any) (*RowSet, error) {
	if h == nil || h.pool == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	rows, err := h.pool.Query(ctx, sqlText, args...)
	if err != nil {
		e.logger.Error().Err(err).Str("sql", truncateSQL(sqlText)).Msg("query failed")
		return nil, &QueryError{SQL: sqlText, Args: args, Err: err}
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	columns := make([]string, len(fds))
	for i, fd := range fds {
		columns[i] = fd.Name
	}

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &QueryError{SQL: sqlText, Args: args, Err: err}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		e.logger.Error().Err(err).Str("sql", truncateSQL(sqlText)).Msg("query failed")
		return nil, &QueryError{SQL: sqlText, Args: args, Err: err}
	}

	e.logger.Debug().
		Dur("duration", time.Since(start)).
		Str("sql", truncateSQL(sqlText)).
		Int("rows", len(out)).
		Msg("query executed")

	return &RowSet{
		Columns:    columns,
		Rows:       out,
		CommandTag: rows.CommandTag().String(),
	}, nil
}

// truncateSQL shortens long statements for log lines.
func truncateSQL(sqlText string) string {
	const maxLen = 120
	if len(sqlText) <= maxLen {
		return sqlText
	}
	return sqlText[:maxLen] + "..."
}
