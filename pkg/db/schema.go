package db

import (
	"context"
	"fmt"
)

// TableInfo describes a table or view.
type TableInfo struct {
	Schema  string
	Name    string
	Type    string
	Columns []ColumnInfo
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    string
}

// ListTables returns all user tables and views visible to the connection,
// excluding system catalogs.
func (e *Executor) ListTables(ctx context.Context, h *Handle) ([]TableInfo, error) {
	const q = `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`

	rs, err := e.Execute(ctx, h, q, nil)
	if err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, rs.Len())
	for _, row := range rs.Rows {
		if len(row) < 3 {
			continue
		}
		tables = append(tables, TableInfo{
			Schema: asString(row[0]),
			Name:   asString(row[1]),
			Type:   asString(row[2]),
		})
	}
	return tables, nil
}

// DescribeTable returns column details for one table. Parameters are bound
// positionally; the table name never reaches the statement text.
func (e *Executor) DescribeTable(ctx context.Context, h *Handle, schema, table string) (*TableInfo, error) {
	const q = `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rs, err := e.Execute(ctx, h, q, []any{schema, table})
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}

	info := &TableInfo{Schema: schema, Name: table, Type: "BASE TABLE"}
	for _, row := range rs.Rows {
		if len(row) < 4 {
			continue
		}
		info.Columns = append(info.Columns, ColumnInfo{
			Name:       asString(row[0]),
			DataType:   asString(row[1]),
			IsNullable: asString(row[2]) == "YES",
			Default:    asString(row[3]),
		})
	}
	return info, nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
