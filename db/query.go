// query.go executes generated SQL and collects results in the shape the
// NL2SQL contract uses: ordered column names plus one map per row.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Result holds the output of a query.
type Result struct {
	Columns   []string
	Rows      []map[string]any
	Truncated bool // more rows existed than the cap allowed
}

// Execute runs sql inside a read-only transaction and returns at most
// maxRows rows. The transaction is always rolled back.
func (d *DB) Execute(ctx context.Context, sql string, maxRows int) (*Result, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty query")
	}

	tx, err := d.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collect(rows, maxRows)
}

// collect drains rows into a Result, stopping after maxRows (0 = no cap).
func collect(rows pgx.Rows, maxRows int) (*Result, error) {
	result := &Result{Columns: []string{}, Rows: []map[string]any{}}
	fields := rows.FieldDescriptions()
	for _, fd := range fields {
		result.Columns = append(result.Columns, fd.Name)
	}

	typeMap := pgtype.NewMap()
	if conn := rows.Conn(); conn != nil {
		typeMap = conn.TypeMap()
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			if i < len(result.Columns) {
				row[result.Columns[i]] = jsonValue(typeMap, fields[i].DataTypeOID, v)
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// jsonValue converts a decoded pgx value into something encoding/json
// renders readably. Scalars, times and json/jsonb pass through; anything
// else (interval, numeric, ranges, network types) is rendered with
// PostgreSQL's text encoding for oid.
func jsonValue(m *pgtype.Map, oid uint32, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 && x.Location() == time.UTC {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	case string, bool, int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64:
		return x
	case map[string]any, []any:
		// json / jsonb
		return x
	}

	if m != nil {
		buf, err := m.Encode(oid, pgtype.TextFormatCode, v, nil)
		if err == nil {
			if buf == nil {
				return nil
			}
			return string(buf)
		}
	}

	switch x := v.(type) {
	case json.Marshaler:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
