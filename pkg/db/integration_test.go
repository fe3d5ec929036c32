package db

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicedesk/voicedesk/internal/testutil"
)

// TestIntegration_RoundTrip connects to a real database when one is
// configured via VOICEDESK_TEST_HOST (or DB_HOST) and exercises the full
// acquire, query, invalidate, reacquire cycle.
func TestIntegration_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := testutil.EnvDBConfig()
	if cfg == nil {
		t.Skip("no test database configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := NewClient(cfg, zerolog.Nop())
	defer client.Invalidate()

	h, err := client.Get(ctx)
	require.NoError(t, err)

	rs, err := client.Execute(ctx, h, "SELECT $1::int AS answer", []any{42})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{"answer"}, rs.Columns)

	tables, err := client.ListTables(ctx, h)
	require.NoError(t, err)
	t.Logf("visible tables: %d", len(tables))

	client.Invalidate()

	h2, err := client.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, h, h2, "invalidation must produce a fresh handle")
}
