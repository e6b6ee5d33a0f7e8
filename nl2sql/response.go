// Package nl2sql is the client side of the natural-language-to-SQL
// service: the response contract, its decoding, the HTTP client and the
// formatter that turns any response into chat text.
//
// A response is either a *Success or a *BackendError. Which one is decided
// once, in Decode, by the presence of a non-empty "error" field; nothing
// downstream re-inspects raw JSON.
package nl2sql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject is returned by Decode when the body is not a JSON object.
var ErrNotObject = errors.New("response body is not a JSON object")

// Response is the tagged union of the NL2SQL wire contract.
type Response interface {
	json.Marshaler
	isResponse()
}

// Row is one result row keyed by column name. Values are scalars:
// string, json.Number, bool or nil.
type Row map[string]any

// Success carries the generated SQL and its result set. Columns and Rows
// may be empty; that is a valid answer, not an error.
type Success struct {
	SQL     string
	Columns []string
	Rows    []Row
}

// BackendError is a well-formed failure. The service produces it when it
// ran but could not answer; the client synthesizes it for transport
// failures (see TransportError).
type BackendError struct {
	Error  string
	Detail string
	SQL    string
}

func (*Success) isResponse()      {}
func (*BackendError) isResponse() {}

// TransportError builds the BackendError shape for a failure to obtain
// any usable response. It never carries SQL.
func TransportError(desc string) *BackendError {
	return &BackendError{Error: desc}
}

// wireResponse mirrors the JSON body. Empty strings and null are treated
// as absent, matching how the front end has always read the payload.
type wireResponse struct {
	Question string   `json:"question,omitempty"`
	SQL      string   `json:"sql,omitempty"`
	Columns  []string `json:"columns,omitempty"`
	Rows     []Row    `json:"rows,omitempty"`
	Error    string   `json:"error,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// Decode validates a response body and returns the matching variant.
// Numbers are kept as json.Number so cells render exactly as sent.
func Decode(data []byte) (Response, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var w wireResponse
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if w.Error != "" {
		return &BackendError{Error: w.Error, Detail: w.Detail, SQL: w.SQL}, nil
	}
	return &Success{SQL: w.SQL, Columns: w.Columns, Rows: w.Rows}, nil
}

// MarshalJSON renders the success shape: {"sql"?, "columns", "rows"}.
func (s *Success) MarshalJSON() ([]byte, error) {
	out := struct {
		SQL     string   `json:"sql,omitempty"`
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{SQL: s.SQL, Columns: s.Columns, Rows: s.Rows}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	if out.Rows == nil {
		out.Rows = []Row{}
	}
	return json.Marshal(out)
}

// MarshalJSON renders the error shape: {"error", "detail"?, "sql"?}.
func (e *BackendError) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResponse{Error: e.Error, Detail: e.Detail, SQL: e.SQL})
}

// Kind names the variant for logs and the debug panel.
func Kind(r Response) string {
	switch r.(type) {
	case *Success:
		return "success"
	case *BackendError:
		return "error"
	default:
		return "none"
	}
}
