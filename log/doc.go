// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// Loggers are configured at creation time with functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
// Attributes added with [Logger.With] or [Logger.Component] are included in
// every subsequent message:
//
//	logger = logger.Component("sampler")
//	logger.Info("candidate selected", slog.String("point", "main.go:42"))
//
// # Package logger
//
// The package-level functions ([Info], [Warn], ...) write through a
// process-wide logger that defaults to stderr. [Config] replaces it with a
// wrapped copy; it is safe to call while other goroutines are logging.
//
// # Levels
//
// In addition to the [slog] levels, [LevelTrace] sits below [LevelDebug]
// and is used for per-experiment detail.
//
// # Output Formats
//
// [FormatText] (default) and [FormatJSON]. With [WithPretty], text output is
// colorized by [github.com/lmittmann/tint].
package log
