// Package applog provides general-purpose application logging.
//
// Logs are written as JSON lines to ~/.sqlchat/logs/app.log once Open has
// been called. Until then every call is a no-op, so the TUI never writes
// to the terminal it is drawing on.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	logger  = zap.NewNop()
	logFile *os.File
)

// Open points the logger at <dir>/app.log, creating the directory if needed.
func Open(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zap.DebugLevel)

	mu.Lock()
	prev := logFile
	logger = zap.New(core)
	logFile = f
	mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// SetLogger replaces the underlying logger. Tests use zap.NewNop or an
// observer core.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the underlying zap logger for callers that want typed fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	L().Debug(fmt.Sprintf(format, args...))
}

// Info logs a general info message.
func Info(format string, args ...interface{}) {
	L().Info(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	L().Error(fmt.Sprintf(format, args...))
}

// Event logs a message tagged with a category (e.g. "startup", "config").
func Event(category string, format string, args ...interface{}) {
	L().Info(fmt.Sprintf(format, args...), zap.String("category", category))
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	_ = logger.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = zap.NewNop()
}
