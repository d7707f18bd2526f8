package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/profile"
)

// defaultConfigIndent is the number of spaces to use for indentation
// when generating the default configuration file.
const defaultConfigIndent = 2

// configFileMode is the permission mode of a generated configuration file.
const configFileMode os.FileMode = 0o600

// Init generates a default configuration file with current flag values.
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)

	confPath, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		panic("internal error: config path undefined")
	}

	// Check if file exists and force not set
	_, err = os.Stat(confPath)
	if err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			With(slog.Bool("exists", true)).
			Wrap(ErrFileExists)
	}

	data, err := yaml.MarshalContext(
		ctx,
		i.document(ctx),
		yaml.Indent(defaultConfigIndent),
	)
	if err != nil {
		return ErrYAMLMarshal.Wrap(err)
	}

	err = os.WriteFile(confPath, data, configFileMode)
	if err != nil {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(err)
	}

	log.DebugContext(
		ctx,
		"initialized configuration file",
		slog.String("path", confPath),
	)

	return nil
}

// document builds the configuration from every flag of every command,
// nested under [ConfigNamespace]. A flag name shared by several commands is
// written once.
func (i *Init) document(ctx context.Context) yaml.MapSlice {
	ktx := kongContextFrom(ctx)

	var (
		entries yaml.MapSlice
		walk    func(*kong.Node)
	)

	seen := make(map[string]struct{})
	prefixIgnore := []string{"help", "version", profile.Tag}

	walk = func(node *kong.Node) {
		for _, flag := range node.Flags {
			if _, dup := seen[flag.Name]; dup {
				continue
			}

			if flag.Hidden || flag.Name == "force" ||
				slices.ContainsFunc(prefixIgnore, func(s string) bool {
					return strings.HasPrefix(flag.Name, s)
				}) {
				continue
			}

			seen[flag.Name] = struct{}{}

			val, ok := configValue(ktx.FlagValue(flag))
			if ok {
				entries = append(entries, yaml.MapItem{Key: flag.Name, Value: val})
			}
		}

		for _, child := range node.Children {
			walk(child)
		}
	}

	walk(ktx.Model.Node)

	return yaml.MapSlice{{Key: ConfigNamespace, Value: entries}}
}

// configValue returns the YAML representation of a flag value, or false if
// the value is unset.
func configValue(val any) (any, bool) {
	switch v := val.(type) {
	case nil:
		return nil, false

	case bool:
		return v, true

	case string:
		return v, v != ""

	case time.Duration:
		return v.String(), true

	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, true

	case []string:
		return v, len(v) > 0

	default:
		return fmt.Sprint(v), true
	}
}
