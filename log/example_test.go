package log_test

import (
	"log/slog"
	"os"

	"github.com/ardnew/causal/log"
)

func Example_basic() {
	logger := log.Make(os.Stdout, log.WithTimeLayout("none"))
	logger.Info("profiler started", slog.String("version", "0.1.0"))
	// Output:
	// level=INFO msg="profiler started" version=0.1.0
}

func Example_levels() {
	logger := log.Make(os.Stdout,
		log.WithLevel(log.LevelWarn),
		log.WithTimeLayout("none"))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("output degraded", slog.String("path", "profile.coz"))
	// Output:
	// level=WARN msg="output degraded" path=profile.coz
}

func Example_component() {
	logger := log.Make(os.Stdout,
		log.WithTimeLayout("none"),
		log.WithFormat(log.FormatJSON))

	logger.Component("scheduler").Info("experiment", slog.Int("speedup", 25))
	// Output:
	// {"level":"INFO","msg":"experiment","component":"scheduler","speedup":25}
}
