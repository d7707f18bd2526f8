package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// stdout returns the writer kong was configured with, or os.Stdout.
func stdout(ctx context.Context) io.Writer {
	if ktx := kongContextFrom(ctx); ktx != nil && ktx.Stdout != nil {
		return ktx.Stdout
	}

	return os.Stdout
}

// Sources reads the concatenation of one or more profile files.
type Sources interface {
	io.ReadCloser
	// Len returns the number of distinct sources, counting stdin once.
	Len() int
}

type sources struct {
	files    []*os.File
	hasStdin bool
	reader   io.Reader
}

// Read implements io.Reader by reading each file in order, then stdin.
func (s *sources) Read(p []byte) (int, error) {
	if s.reader == nil {
		readers := make([]io.Reader, 0, len(s.files)+1)
		for _, f := range s.files {
			readers = append(readers, f)
		}

		if s.hasStdin {
			readers = append(readers, os.Stdin)
		}

		s.reader = io.MultiReader(readers...)
	}

	return s.reader.Read(p)
}

// Close closes every opened file. Stdin is left open.
func (s *sources) Close() error {
	var errs []error

	for _, f := range s.files {
		errs = append(errs, f.Close())
	}

	s.files = nil

	return errors.Join(errs...)
}

func (s *sources) Len() int {
	if s.hasStdin {
		return len(s.files) + 1
	}

	return len(s.files)
}

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks, absolute/relative paths, and
// special device files.
type fileKey struct {
	dev uint64
	ino uint64
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// openSources opens each path for reading.
//
// Paths naming the same file through symlinks or relative components are
// read once. All occurrences of "-" collapse into a single stdin reader
// placed last. With no paths, stdin is read.
func openSources(paths []string) (Sources, error) {
	srcs := &sources{files: make([]*os.File, 0, len(paths))}

	if len(paths) == 0 {
		srcs.hasStdin = true

		return srcs, nil
	}

	seen := make(map[fileKey]struct{})

	stdinKey, hasStdinKey := fileKey{}, false
	if info, err := os.Stdin.Stat(); err == nil {
		stdinKey, hasStdinKey = makeFileKey(info)
	}

	for _, path := range paths {
		if path == stdinSource {
			srcs.hasStdin = true

			continue
		}

		file, key, err := openUnique(path, seen)
		if err != nil {
			_ = srcs.Close()

			return nil, ErrReadProfile.
				With(slog.String("file", path)).
				Wrap(err)
		}

		if file == nil {
			continue
		}

		// A named path may be the same file stdin is attached to.
		if hasStdinKey && key == stdinKey {
			_ = file.Close()
			srcs.hasStdin = true

			continue
		}

		srcs.files = append(srcs.files, file)
	}

	return srcs, nil
}

// openUnique opens the file at path unless it has been seen before, in which
// case the returned file is nil.
func openUnique(
	path string,
	seen map[fileKey]struct{},
) (*os.File, fileKey, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fileKey{}, err
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fileKey{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fileKey{}, err
	}

	key, ok := makeFileKey(info)
	if ok {
		if _, exists := seen[key]; exists {
			return nil, key, nil
		}

		seen[key] = struct{}{}
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, key, err
	}

	return file, key, nil
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true //nolint:unconvert
}
