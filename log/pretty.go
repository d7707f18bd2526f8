package log

import (
	"log/slog"

	"github.com/lmittmann/tint"
)

// traceLabel is the short label tint prints for [LevelTrace], matching the
// width of its built-in DBG/INF/WRN/ERR labels.
const traceLabel = "TRC"

// newPrettyHandler returns a colorized text handler for interactive use.
// Timestamps honor the configured layout; an empty layout removes them.
func newPrettyHandler(c config) slog.Handler {
	return tint.NewHandler(c.output, &tint.Options{
		AddSource:  c.caller,
		Level:      slog.Level(c.level),
		TimeFormat: c.layout,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}

			switch a.Key {
			case slog.TimeKey:
				if c.layout == "" {
					return slog.Attr{}
				}

			case slog.LevelKey:
				if level, ok := a.Value.Any().(slog.Level); ok &&
					level < slog.LevelDebug {
					return slog.String(a.Key, traceLabel)
				}
			}

			return a
		},
	})
}
