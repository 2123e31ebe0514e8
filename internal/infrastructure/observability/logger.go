package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// InitLogger builds the root logger. The console format is meant for a
// shop terminal where someone is watching the agent; everything else gets
// JSON lines.
func InitLogger(level, format string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(format, LogFormatConsole) {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen, NoColor: output != os.Stdout}
	}

	return zerolog.New(output).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// ForComponent tags every line with the subsystem that wrote it.
func ForComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

func WithContext(logger zerolog.Logger, fields map[string]any) zerolog.Logger {
	return logger.With().Fields(fields).Logger()
}
