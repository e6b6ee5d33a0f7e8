package nl2sql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MaxRows is how many result rows Format renders before summarizing the
// rest. Fixed: existing transcripts depend on it.
const MaxRows = 10

// Format turns a response into the assistant's chat text. It is pure and
// defined for every Response; a nil response renders as an empty success.
func Format(r Response) string {
	switch r := r.(type) {
	case *BackendError:
		return formatError(r)
	case *Success:
		return formatSuccess(r)
	default:
		return formatSuccess(&Success{})
	}
}

func formatError(e *BackendError) string {
	var sb strings.Builder
	sb.WriteString("Backend reported an error: ")
	sb.WriteString(e.Error)
	if e.Detail != "" {
		sb.WriteString("\nDetail: ")
		sb.WriteString(e.Detail)
	}
	if e.SQL != "" {
		sb.WriteString("\n\nGenerated SQL:\n")
		sb.WriteString(e.SQL)
	}
	return sb.String()
}

func formatSuccess(s *Success) string {
	var sb strings.Builder
	if s.SQL != "" {
		sb.WriteString("Generated SQL:\n")
		sb.WriteString(s.SQL)
		sb.WriteString("\n")
	} else {
		sb.WriteString("No SQL was returned.\n")
	}

	if len(s.Columns) == 0 {
		sb.WriteString("\n(No result columns returned)")
		return sb.String()
	}
	if len(s.Rows) == 0 {
		sb.WriteString("\nQuery returned 0 rows.")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\nResult (up to %d rows):\n", MaxRows))
	sb.WriteString(strings.Join(s.Columns, " | "))

	shown := s.Rows
	if len(shown) > MaxRows {
		shown = shown[:MaxRows]
	}
	cells := make([]string, len(s.Columns))
	for _, row := range shown {
		for i, col := range s.Columns {
			cells[i] = cellString(row[col])
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(cells, " | "))
	}

	if extra := len(s.Rows) - MaxRows; extra > 0 {
		sb.WriteString(fmt.Sprintf("\n… (%d more rows)", extra))
	}
	return sb.String()
}

// cellString renders one value; nil and missing cells are empty.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
		return fmt.Sprint(x)
	}
}
