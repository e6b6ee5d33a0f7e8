// schema.go describes the database for the SQL-generation prompt.
//
// It gathers every base table of a schema with its columns (type,
// nullability, primary key) and foreign keys, and renders them as a
// compact text block the model can reason over.
package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPK       bool
}

// ForeignKeyInfo describes a foreign key constraint.
type ForeignKeyInfo struct {
	Column        string
	ForeignTable  string
	ForeignColumn string
}

// TableSchema holds schema information for a table.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	ForeignKeys []ForeignKeyInfo
}

const columnsQuery = `
	SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES',
	       EXISTS (
	         SELECT 1
	         FROM information_schema.table_constraints tc
	         JOIN information_schema.key_column_usage k
	           ON k.constraint_name = tc.constraint_name
	          AND k.table_schema = tc.table_schema
	         WHERE tc.constraint_type = 'PRIMARY KEY'
	           AND tc.table_schema = c.table_schema
	           AND tc.table_name = c.table_name
	           AND k.column_name = c.column_name
	       )
	FROM information_schema.columns c
	JOIN information_schema.tables t
	  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
	ORDER BY c.table_name, c.ordinal_position`

const foreignKeysQuery = `
	SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
	  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
	ORDER BY tc.table_name, kcu.column_name`

// FetchSchema retrieves all base tables of schema ("public" when empty).
func (d *DB) FetchSchema(ctx context.Context, schema string) ([]TableSchema, error) {
	if schema == "" {
		schema = "public"
	}

	tables := map[string]*TableSchema{}
	get := func(name string) *TableSchema {
		ts, ok := tables[name]
		if !ok {
			ts = &TableSchema{Name: name}
			tables[name] = ts
		}
		return ts
	}

	rows, err := d.Pool.Query(ctx, columnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	for rows.Next() {
		var table string
		var col ColumnInfo
		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.IsNullable, &col.IsPK); err != nil {
			rows.Close()
			return nil, err
		}
		ts := get(table)
		ts.Columns = append(ts.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.Pool.Query(ctx, foreignKeysQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("foreign keys: %w", err)
	}
	for rows.Next() {
		var table string
		var fk ForeignKeyInfo
		if err := rows.Scan(&table, &fk.Column, &fk.ForeignTable, &fk.ForeignColumn); err != nil {
			rows.Close()
			return nil, err
		}
		ts := get(table)
		ts.ForeignKeys = append(ts.ForeignKeys, fk)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TableSchema, 0, len(tables))
	for _, ts := range tables {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SchemaContext returns FormatSchemaContext for the public schema.
func (d *DB) SchemaContext(ctx context.Context) (string, error) {
	tables, err := d.FetchSchema(ctx, "public")
	if err != nil {
		return "", err
	}
	return FormatSchemaContext(tables), nil
}

// FormatSchemaContext renders tables as prompt text, one section per table.
func FormatSchemaContext(tables []TableSchema) string {
	var sb strings.Builder
	for i, ts := range tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Table %s\n", ts.Name))
		for _, col := range ts.Columns {
			nullable := "NULL"
			if !col.IsNullable {
				nullable = "NOT NULL"
			}
			pk := ""
			if col.IsPK {
				pk = " [PK]"
			}
			sb.WriteString(fmt.Sprintf("- %s %s %s%s\n", col.Name, col.DataType, nullable, pk))
		}
		for _, fk := range ts.ForeignKeys {
			sb.WriteString(fmt.Sprintf("- FK %s.%s → %s.%s\n", ts.Name, fk.Column, fk.ForeignTable, fk.ForeignColumn))
		}
	}
	return sb.String()
}
