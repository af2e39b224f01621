package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/znz-systems/mailgate/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a JSON logger at cfg.LogLevel. When cfg.LogFile is set, records
// are also written to a size-rotated file. The returned closer releases the
// file and is a no-op otherwise.
func New(cfg *config.Config) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	return newLogger(out, cfg.LogLevel), closer
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
