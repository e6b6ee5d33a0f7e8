// Package ai turns a natural-language question into SQL for the
// reference NL2SQL backend.
//
// Design decisions:
//   - Provider is an interface so we can swap backends (OpenAI, Anthropic,
//     Gemini, Ollama) without changing the server.
//   - All methods accept context for cancellation.
//   - The placeholder provider answers without any network access, for
//     development and tests.
package ai

import (
	"context"
	"fmt"
	"net/http"
)

// Provider is the interface all AI backends must implement.
type Provider interface {
	// GenerateSQL returns the model's SQL for question given a textual
	// description of the database. The output may still carry markdown;
	// callers clean and vet it.
	GenerateSQL(ctx context.Context, schemaContext string, question string) (string, error)

	// Name returns the provider name for display.
	Name() string
}

// httpDoer is the part of *http.Client the providers use.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func userPrompt(schemaContext, question string) string {
	return fmt.Sprintf("Database schema:\n%s\nConvert this natural language question to a SQL SELECT query:\n%q\n\nSQL Query:", schemaContext, question)
}
