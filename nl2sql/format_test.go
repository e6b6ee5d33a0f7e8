package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "single row without sql",
			resp: &Success{
				Columns: []string{"id", "name"},
				Rows:    []Row{{"id": json.Number("1"), "name": "Alice"}},
			},
			want: "No SQL was returned.\n\nResult (up to 10 rows):\nid | name\n1 | Alice",
		},
		{
			name: "no columns",
			resp: &Success{Columns: []string{}, Rows: []Row{}},
			want: "No SQL was returned.\n\n(No result columns returned)",
		},
		{
			name: "columns ignored rows when columns missing",
			resp: &Success{SQL: "SELECT 1", Rows: []Row{{"x": "y"}}},
			want: "Generated SQL:\nSELECT 1\n\n(No result columns returned)",
		},
		{
			name: "zero rows",
			resp: &Success{SQL: "SELECT id FROM t", Columns: []string{"id"}},
			want: "Generated SQL:\nSELECT id FROM t\n\nQuery returned 0 rows.",
		},
		{
			name: "backend error with detail and sql",
			resp: &BackendError{Error: "Unknown column", Detail: "x not in table", SQL: "SELECT x FROM t"},
			want: "Backend reported an error: Unknown column\nDetail: x not in table\n\nGenerated SQL:\nSELECT x FROM t",
		},
		{
			name: "backend error only",
			resp: &BackendError{Error: "question required"},
			want: "Backend reported an error: question required",
		},
		{
			name: "backend error with sql but no detail",
			resp: &BackendError{Error: "unsafe", SQL: "DROP TABLE t"},
			want: "Backend reported an error: unsafe\n\nGenerated SQL:\nDROP TABLE t",
		},
		{
			name: "null and missing cells are empty, order follows columns",
			resp: &Success{
				SQL:     "SELECT a, b, c FROM t",
				Columns: []string{"c", "a", "b"},
				Rows:    []Row{{"a": nil, "c": true}, {"a": json.Number("2.50"), "b": "x"}},
			},
			want: "Generated SQL:\nSELECT a, b, c FROM t\n\nResult (up to 10 rows):\nc | a | b\ntrue |  | \n | 2.50 | x",
		},
		{
			name: "nil response renders as empty success",
			resp: nil,
			want: "No SQL was returned.\n\n(No result columns returned)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.resp))
		})
	}
}

func TestFormatErrorIgnoresResultFields(t *testing.T) {
	// A payload carrying both error and rows decodes as an error.
	resp, err := Decode([]byte(`{"error":"boom","columns":["id"],"rows":[{"id":1}]}`))
	assert.NoError(t, err)
	assert.Equal(t, "Backend reported an error: boom", Format(resp))
}

func numberedRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{"n": json.Number(fmt.Sprint(i + 1))}
	}
	return rows
}

func TestFormatIncludesEveryRowUpToLimit(t *testing.T) {
	for _, n := range []int{1, 5, MaxRows} {
		out := Format(&Success{Columns: []string{"n"}, Rows: numberedRows(n)})
		lines := strings.Split(out, "\n")
		// "No SQL...", "", "Result ...", header, then n rows
		body := lines[4:]
		assert.Len(t, body, n)
		for i, line := range body {
			assert.Equal(t, fmt.Sprint(i+1), line)
		}
		assert.NotContains(t, out, "more rows")
	}
}

func TestFormatTruncatesAfterTenRows(t *testing.T) {
	out := Format(&Success{SQL: "SELECT n FROM t", Columns: []string{"n"}, Rows: numberedRows(23)})

	assert.True(t, strings.HasSuffix(out, "\n10\n… (13 more rows)"), out)
	assert.NotContains(t, out, "\n11\n")

	lines := strings.Split(out, "\n")
	header := -1
	for i, l := range lines {
		if l == "n" {
			header = i
			break
		}
	}
	assert.NotEqual(t, -1, header)
	assert.Len(t, lines[header+1:], MaxRows+1, "ten data lines plus the note")
}

func TestFormatIsDeterministic(t *testing.T) {
	resp := &Success{
		SQL:     "SELECT *",
		Columns: []string{"b", "a"},
		Rows:    []Row{{"a": "1", "b": "2"}, {"a": "3", "b": "4"}},
	}
	first := Format(resp)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Format(resp))
	}
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "abc", cellString("abc"))
	assert.Equal(t, "42", cellString(json.Number("42")))
	assert.Equal(t, "false", cellString(false))
	assert.Equal(t, "1.5", cellString(1.5))
	assert.Equal(t, "7", cellString(7))
	assert.Equal(t, "[1,2]", cellString([]int{1, 2}))
}
