package db

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voicedesk/voicedesk/pkg/config"
)

// Database is the surface the tool layer consumes. It allows the agent
// package to be tested against a fake without a live backend.
type Database interface {
	// Get returns the cached or freshly acquired handle. Any error means the
	// database is unavailable right now; callers degrade, never crash.
	Get(ctx context.Context) (*Handle, error)

	// Invalidate drops the cached handle so the next Get reconnects.
	Invalidate()

	// Execute runs a statement with positional parameters.
	Execute(ctx context.Context, h *Handle, sqlText string, args []any) (*RowSet, error)

	// Schema introspection for the model's tools.
	ListTables(ctx context.Context, h *Handle) ([]TableInfo, error)
	DescribeTable(ctx context.Context, h *Handle, schema, table string) (*TableInfo, error)
}

// Client bundles the connection manager and query executor behind the
// Database interface.
type Client struct {
	*Manager
	*Executor
}

// NewClient wires a Manager and Executor for the given configuration.
func NewClient(cfg *config.DBConfig, logger zerolog.Logger) *Client {
	return &Client{
		Manager:  NewManager(cfg, logger),
		Executor: NewExecutor(logger),
	}
}

var _ Database = (*Client)(nil)
