package cli

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ardnew/causal/pkg"
)

// baseConfig is the base name of the configuration file.
const baseConfig = "config.yaml"

// configEnv names the environment variable overriding the configuration file.
const configEnv = pkg.EnvPrefix + "CONFIG"

// DefaultDirMode is the default permission mode for created directories.
var defaultDirMode os.FileMode = 0o700

// userDir returns the causal subdirectory of the directory reported by
// user, falling back to hidden beneath the home directory and finally to
// the working directory.
func userDir(user func() (string, error), hidden string) func() string {
	return sync.OnceValue(func() string {
		if dir, err := user(); err == nil {
			return filepath.Join(dir, pkg.Name)
		}

		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, hidden, pkg.Name)
		}

		if wd, err := os.Getwd(); err == nil {
			return filepath.Join(wd, "."+pkg.Name)
		}

		return "." + pkg.Name
	})
}

var (
	// configDir returns the configuration directory path.
	configDir = userDir(os.UserConfigDir, ".config")
	// cacheDir returns the cache directory path used for transient files.
	cacheDir = userDir(os.UserCacheDir, ".cache")
)

// configPath returns the absolute path to a file or directory formed by joining
// the global configuration directory path with the given path elements.
//
// If no elements are given, it is equivalent to calling [configDir].
func configPath(elem ...string) string {
	return filepath.Join(append([]string{configDir()}, elem...)...)
}

// configFile returns the path of the YAML configuration file.
func configFile() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}

	return configPath(baseConfig)
}

// mkdirAllRequired creates all required runtime directories. A configuration
// file named by the environment lives wherever the user put it.
func mkdirAllRequired() error {
	for _, dir := range []string{configDir(), cacheDir()} {
		err := os.MkdirAll(dir, defaultDirMode)
		if err != nil {
			return err
		}
	}

	return nil
}
