// logger.go records every SQL generation (question, raw output, error,
// latency) in the application log.
package ai

import (
	"context"
	"time"

	"github.com/DachengChen/sqlchat/applog"
	"go.uber.org/zap"
)

type loggingProvider struct {
	Provider
}

// WithLogging wraps p so each GenerateSQL call is logged.
func WithLogging(p Provider) Provider {
	if _, ok := p.(loggingProvider); ok {
		return p
	}
	return loggingProvider{Provider: p}
}

func (l loggingProvider) GenerateSQL(ctx context.Context, schemaContext string, question string) (string, error) {
	start := time.Now()
	sql, err := l.Provider.GenerateSQL(ctx, schemaContext, question)

	fields := []zap.Field{
		zap.String("op", "GenerateSQL"),
		zap.String("provider", l.Provider.Name()),
		zap.String("question", question),
		zap.Int("schema_bytes", len(schemaContext)),
		zap.String("response", sql),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		applog.L().Error("ai request failed", append(fields, zap.Error(err))...)
	} else {
		applog.L().Info("ai request", fields...)
	}
	return sql, err
}
