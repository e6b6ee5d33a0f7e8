package ai

import (
	"context"
	"fmt"
	"strings"
)

// Placeholder is an offline provider for development. It picks the first
// schema table named in the question and selects from it.
type Placeholder struct{}

var _ Provider = (*Placeholder)(nil)

func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

func (p *Placeholder) Name() string {
	return "placeholder"
}

func (p *Placeholder) GenerateSQL(ctx context.Context, schemaContext string, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q := strings.ToLower(question)
	for _, line := range strings.Split(schemaContext, "\n") {
		name, ok := strings.CutPrefix(line, "Table ")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name != "" && strings.Contains(q, strings.ToLower(name)) {
			return fmt.Sprintf("SELECT * FROM %s LIMIT 50", quoteIdent(name)), nil
		}
	}
	return "SELECT current_database() AS database, now() AS server_time", nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
