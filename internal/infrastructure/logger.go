package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"markscope/internal/config"
)

// Process-wide logger state. The log file is kept so shutdown can close it.
var (
	logState struct {
		once sync.Once
		mu   sync.Mutex
		file *os.File
	}
	globalLogger *slog.Logger
)

// InitializeLogger builds the process logger once and installs it as the slog
// default. Later calls return the first logger. A relative cfg.FilePath is
// placed under logsDir.
func InitializeLogger(cfg config.LoggingConfig, logsDir string) (*slog.Logger, error) {
	var err error
	logState.once.Do(func() {
		var (
			logger *slog.Logger
			file   *os.File
		)
		if logger, file, err = NewLogger(cfg, logsDir, os.Stdout); err != nil {
			return
		}
		logState.mu.Lock()
		logState.file = file
		logState.mu.Unlock()
		globalLogger = logger
		slog.SetDefault(logger)
	})
	return globalLogger, err
}

// GetLogger returns the process logger, falling back to slog.Default.
func GetLogger() *slog.Logger {
	if l := globalLogger; l != nil {
		return l
	}
	return slog.Default()
}

// NewLogger builds a logger for cfg.Output: console, file or both. The file is
// returned so the caller can close it; it is nil for console output.
func NewLogger(cfg config.LoggingConfig, logsDir string, console io.Writer) (*slog.Logger, *os.File, error) {
	out, file, err := logWriter(cfg, logsDir, console)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: logLevel(cfg.Level)}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(correlated{h}), file, nil
}

func logWriter(cfg config.LoggingConfig, logsDir string, console io.Writer) (io.Writer, *os.File, error) {
	mode := strings.ToLower(cfg.Output)
	if mode != "file" && mode != "both" {
		return console, nil, nil
	}

	path := cfg.FilePath
	if logsDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(logsDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	if mode == "both" {
		return io.MultiWriter(console, file), file, nil
	}
	return file, file, nil
}

// logLevel accepts slog level names plus "warning". Anything else is info.
func logLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// correlated stamps records with the request trace id, or with the active
// span's ids when the request carried none.
type correlated struct {
	slog.Handler
}

func (h correlated) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h correlated) WithAttrs(attrs []slog.Attr) slog.Handler {
	return correlated{h.Handler.WithAttrs(attrs)}
}

func (h correlated) WithGroup(name string) slog.Handler {
	return correlated{h.Handler.WithGroup(name)}
}

// CloseLogFile closes the file opened by InitializeLogger, if any.
func CloseLogFile() error {
	logState.mu.Lock()
	defer logState.mu.Unlock()

	f := logState.file
	logState.file = nil
	if f == nil {
		return nil
	}
	return f.Close()
}

// ResetLoggerForTesting forgets the process logger so tests can initialize it again.
func ResetLoggerForTesting() {
	CloseLogFile()
	globalLogger = nil
	logState.once = sync.Once{}
}
