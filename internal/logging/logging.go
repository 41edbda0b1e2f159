package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Setup configures the default slog logger to write to stderr and, when
// logDir is non-empty, to <logDir>/<name>.log. Each entry point passes its
// own name so daily and weekly runs keep separate log files.
func Setup(name, logDir string) error {
	writers := []io.Writer{os.Stderr}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
		path := filepath.Join(logDir, name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}
