package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/causal/log"
)

// resolve returns a [kong.ConfigurationLoader] that reads flag values from
// the YAML mapping under the top-level key name.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve("causal"), "/path/to/config.yaml")
//
// The YAML document is converted as follows:
//   - Keys are flag names with either hyphens or underscores
//   - Nested mappings join their keys with hyphens, so log: {level: debug}
//     sets --log-level
//   - Sequences become comma-separated lists
//   - Numbers and durations are passed to kong as strings
//
// Example config file:
//
//	causal:
//	  log:
//	    level: debug
//	    format: json
//	  profile_scope: [internal/*, cmd/*]
//
// A document without the top-level key is read as a flat mapping. A file
// that is not valid YAML is ignored with a warning, so a broken config never
// prevents the CLI from starting. Command-line flags override config file
// values.
func resolve(name string) kong.ConfigurationLoader {
	return func(r io.Reader) (kong.Resolver, error) {
		var doc map[string]any

		err := yaml.NewDecoder(r).Decode(&doc)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("ignoring invalid configuration file",
					slog.Any("error", err))
			}

			return config{}, nil
		}

		root := doc
		if ns, ok := doc[name].(map[string]any); ok {
			root = ns
		}

		cfg := make(config)
		cfg.flatten("", root)

		return cfg, nil
	}
}

// config implements [kong.Resolver] for YAML configs.
type config map[string]any

// Validate implements [kong.Resolver].
func (r config) Validate(*kong.Application) error {
	// No validation needed - the config was already parsed successfully
	return nil
}

// Resolve implements [kong.Resolver].
func (r config) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	// Kong flags use hyphens (e.g., "log-level") but YAML keys may use
	// underscores. Keys were normalized to hyphens when flattened.
	if value, ok := r[flag.Name]; ok {
		return value, nil
	}

	// Not found - return nil to let Kong use defaults
	return nil, nil
}

// flatten stores each scalar of m under its hyphen-joined key path.
func (r config) flatten(prefix string, m map[string]any) {
	for key, val := range m {
		key = strings.ReplaceAll(key, "_", "-")
		if prefix != "" {
			key = prefix + "-" + key
		}

		if sub, ok := val.(map[string]any); ok {
			r.flatten(key, sub)

			continue
		}

		r[key] = scalar(val)
	}
}

// scalar converts a decoded YAML value to a form kong can parse.
// Kong requires numbers as strings.
func scalar(val any) any {
	switch v := val.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Duration:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = fmt.Sprint(scalar(e))
		}

		return strings.Join(parts, ",")
	default:
		return v
	}
}
