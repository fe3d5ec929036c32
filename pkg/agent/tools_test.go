package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicedesk/voicedesk/pkg/db"
)

// fakeDatabase implements db.Database with canned behavior per call.
type fakeDatabase struct {
	getErr      error
	executeErr  error
	rowSet      *db.RowSet
	tables      []db.TableInfo
	tableInfo   *db.TableInfo
	describeErr error

	gets        int
	invalidates int
	lastSQL     string
	lastArgs    []any
}

func (f *fakeDatabase) Get(ctx context.Context) (*db.Handle, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &db.Handle{}, nil
}

func (f *fakeDatabase) Invalidate() {
	f.invalidates++
}

func (f *fakeDatabase) Execute(ctx context.Context, h *db.Handle, sqlText string, args []any) (*db.RowSet, error) {
	f.lastSQL = sqlText
	f.lastArgs = args
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	if f.rowSet != nil {
		return f.rowSet, nil
	}
	return &db.RowSet{CommandTag: "SELECT 0"}, nil
}

func (f *fakeDatabase) ListTables(ctx context.Context, h *db.Handle) ([]db.TableInfo, error) {
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return f.tables, nil
}

func (f *fakeDatabase) DescribeTable(ctx context.Context, h *db.Handle, schema, table string) (*db.TableInfo, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if f.tableInfo != nil {
		return f.tableInfo, nil
	}
	return &db.TableInfo{Schema: schema, Name: table}, nil
}

func toolByName(t *testing.T, tools []*Tool, name string) *Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestLookupTool_OfflineDatabaseDegrades(t *testing.T) {
	database := &fakeDatabase{getErr: db.ErrConnectFailed}
	tool := toolByName(t, CreateDataTools(database, nil), "lookup_rows")

	result, err := tool.Handler(context.Background(), map[string]interface{}{
		"sql": "SELECT * FROM callers",
	})

	require.NoError(t, err, "an offline database must not error the conversation loop")
	assert.True(t, result.IsError)
	assert.Equal(t, offlineMessage, result.Content)
	assert.Equal(t, 0, database.invalidates)
}

func TestLookupTool_RejectsWrites(t *testing.T) {
	database := &fakeDatabase{}
	tool := toolByName(t, CreateDataTools(database, nil), "lookup_rows")

	for _, sql := range []string{
		"DELETE FROM callers",
		"DROP TABLE callers",
		"INSERT INTO callers (name) VALUES ($1)",
		"SELECT 1; DELETE FROM callers",
		"",
	} {
		result, err := tool.Handler(context.Background(), map[string]interface{}{"sql": sql})
		require.NoError(t, err)
		assert.True(t, result.IsError, "statement %q must be rejected", sql)
	}
	assert.Equal(t, 0, database.gets, "rejected statements never touch the database")
}

func TestLookupTool_PassesParametersPositionally(t *testing.T) {
	database := &fakeDatabase{rowSet: &db.RowSet{
		Columns: []string{"name"},
		Rows:    [][]any{{"alice"}},
	}}
	tool := toolByName(t, CreateDataTools(database, nil), "lookup_rows")

	result, err := tool.Handler(context.Background(), map[string]interface{}{
		"sql":    "SELECT name FROM callers WHERE phone = $1",
		"params": []interface{}{"555-0100"},
	})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "alice")
	assert.Equal(t, []any{"555-0100"}, database.lastArgs)
}

func TestLookupTool_TransportFailureInvalidates(t *testing.T) {
	database := &fakeDatabase{
		executeErr: &db.QueryError{SQL: "SELECT 1", Err: errors.New("connection reset by peer")},
	}
	tool := toolByName(t, CreateDataTools(database, nil), "lookup_rows")

	result, err := tool.Handler(context.Background(), map[string]interface{}{"sql": "SELECT 1"})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 1, database.invalidates, "transport failures must drop the cached connection")
}

func TestLookupTool_ServerErrorKeepsConnection(t *testing.T) {
	database := &fakeDatabase{
		executeErr: &db.QueryError{
			SQL: "SELECT nope",
			Err: &pgconn.PgError{Code: "42703", Message: `column "nope" does not exist`},
		},
	}
	tool := toolByName(t, CreateDataTools(database, nil), "lookup_rows")

	result, err := tool.Handler(context.Background(), map[string]interface{}{"sql": "SELECT nope"})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 0, database.invalidates, "server-reported errors must not drop a healthy connection")
}

func TestRecordTool_ApprovalDenied(t *testing.T) {
	database := &fakeDatabase{}
	var prompted string
	approve := func(desc string) bool {
		prompted = desc
		return false
	}
	tool := toolByName(t, CreateDataTools(database, approve), "record_row")

	result, err := tool.Handler(context.Background(), map[string]interface{}{
		"sql":     "INSERT INTO callbacks (phone) VALUES ($1)",
		"params":  []interface{}{"555-0100"},
		"summary": "Log a callback request",
	})

	require.NoError(t, err)
	assert.False(t, result.IsError, "a denied write is a normal outcome, not an error")
	assert.Contains(t, result.Content, "not approved")
	assert.Contains(t, prompted, "Log a callback request")
	assert.Equal(t, 0, database.gets, "denied writes never reach the database")
}

func TestRecordTool_ApprovedWriteRuns(t *testing.T) {
	database := &fakeDatabase{rowSet: &db.RowSet{CommandTag: "INSERT 0 1"}}
	tool := toolByName(t, CreateDataTools(database, func(string) bool { return true }), "record_row")

	result, err := tool.Handler(context.Background(), map[string]interface{}{
		"sql":     "INSERT INTO callbacks (phone) VALUES ($1)",
		"params":  []interface{}{"555-0100"},
		"summary": "Log a callback request",
	})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "INSERT 0 1")
	assert.Equal(t, []any{"555-0100"}, database.lastArgs)
}

func TestRecordTool_RejectsNonWrites(t *testing.T) {
	database := &fakeDatabase{}
	tool := toolByName(t, CreateDataTools(database, func(string) bool { return true }), "record_row")

	for _, sql := range []string{
		"SELECT * FROM callers",
		"DELETE FROM callers",
		"INSERT INTO a VALUES (1); DELETE FROM b",
	} {
		result, err := tool.Handler(context.Background(), map[string]interface{}{
			"sql":     sql,
			"summary": "x",
		})
		require.NoError(t, err)
		assert.True(t, result.IsError, "statement %q must be rejected", sql)
	}
}

func TestDescribeTableTool_SchemaQualifier(t *testing.T) {
	database := &fakeDatabase{tableInfo: &db.TableInfo{
		Schema: "support",
		Name:   "tickets",
		Columns: []db.ColumnInfo{
			{Name: "id", DataType: "integer"},
			{Name: "note", DataType: "text", IsNullable: true},
		},
	}}
	tool := toolByName(t, CreateSchemaTools(database), "describe_table")

	result, err := tool.Handler(context.Background(), map[string]interface{}{
		"table_name": "support.tickets",
	})

	require.NoError(t, err)
	assert.Contains(t, result.Content, "support.tickets")
	assert.Contains(t, result.Content, "id integer NOT NULL")
	assert.Contains(t, result.Content, "note text NULL")
}

func TestListTablesTool(t *testing.T) {
	database := &fakeDatabase{tables: []db.TableInfo{
		{Schema: "public", Name: "callers", Type: "BASE TABLE"},
		{Schema: "public", Name: "open_tickets", Type: "VIEW"},
	}}
	tool := toolByName(t, CreateSchemaTools(database), "list_tables")

	result, err := tool.Handler(context.Background(), map[string]interface{}{})

	require.NoError(t, err)
	assert.Contains(t, result.Content, "public.callers (BASE TABLE)")
	assert.Contains(t, result.Content, "public.open_tickets (VIEW)")
}

func TestRequireReadOnly(t *testing.T) {
	tests := []struct {
		sql string
		ok  bool
	}{
		{"SELECT 1", true},
		{"  select * from t  ", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"VALUES (1), (2)", true},
		{"SELECT 1;", true},
		{"DELETE FROM t", false},
		{"SELECT 1; DROP TABLE t", false},
		{"", false},
	}

	for _, tt := range tests {
		err := requireReadOnly(tt.sql)
		if tt.ok && err != nil {
			t.Errorf("requireReadOnly(%q) = %v, want nil", tt.sql, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("requireReadOnly(%q) = nil, want error", tt.sql)
		}
	}
}

func TestRequireWrite(t *testing.T) {
	tests := []struct {
		sql string
		ok  bool
	}{
		{"INSERT INTO t (a) VALUES ($1)", true},
		{"UPDATE t SET a = $1 WHERE id = $2", true},
		{"update t set a = 1", true},
		{"SELECT 1", false},
		{"DELETE FROM t", false},
		{"TRUNCATE t", false},
		{"", false},
	}

	for _, tt := range tests {
		err := requireWrite(tt.sql)
		if tt.ok && err != nil {
			t.Errorf("requireWrite(%q) = %v, want nil", tt.sql, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("requireWrite(%q) = nil, want error", tt.sql)
		}
	}
}

func TestExtractParams(t *testing.T) {
	assert.Nil(t, extractParams(map[string]interface{}{}))
	assert.Nil(t, extractParams(map[string]interface{}{"params": "not a list"}))

	got := extractParams(map[string]interface{}{
		"params": []interface{}{"a", float64(2), nil},
	})
	assert.Equal(t, []any{"a", float64(2), nil}, got)
}
