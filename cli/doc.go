// Package cli contains the command line interface for causal.
//
// # Usage
//
// The report command summarizes one or more profiles written by a program
// linked with the causal package:
//
//	causal report profile.coz
//	causal report --where 'slope > 0.2 && samples > 100' -o yaml run1.coz run2.coz
//	causal report --match 'server.go' --top 5 profile.coz
//
// The demo command profiles a toy workload and writes its profile:
//
//	causal demo --duration 1m --metrics-addr localhost:9090
//
// # Configuration File
//
// Flag values are also read from a YAML file in the user's configuration
// directory ([os.UserConfigDir]/causal/config.yaml). Keys are flag names
// with hyphens or underscores, nested under a top-level causal key:
//
//	causal:
//	  log-level: debug
//	  profile-format: json
//	  profile_scope: [internal/*]
//
// Environment variables with the CAUSAL_ prefix override the file, and
// flags override both. The init command writes the current values:
//
//	causal init --force
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (json, text)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Colorize text output
//
// # Profiling Options
//
// Self-profiling of the CLI is only available when built with the pprof
// build tag:
//
//	go build -tags pprof -o causal .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default:
//     ~/.cache/causal/pprof)
package cli
