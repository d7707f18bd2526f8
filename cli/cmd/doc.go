// Package cmd implements the causal subcommands: report summarizes profiles
// written by the runtime, demo profiles a toy workload, and init writes the
// current flag values to the configuration file.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the YAML configuration file.
	ConfigIdentifier = "config"

	// ConfigNamespace is the top-level YAML key holding flag values.
	ConfigNamespace = "causal"
)
