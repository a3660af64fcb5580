package observability

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the service logger: human-readable text on stderr plus
// JSON appended to a file under logDir, fanned out so every record hits both
// sinks. The returned cleanup closes the log file and must be deferred by the
// caller. An empty logDir disables the file sink.
func SetupLogger(level, logDir string) (*slog.Logger, func(), error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	if logDir == "" {
		return slog.New(stderrHandler), func() {}, nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "gauge-ingest.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	cleanup := func() { logFile.Close() }
	return logger, cleanup, nil
}

func parseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
