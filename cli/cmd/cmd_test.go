package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
)

// testCLI mirrors the command tree of the causal executable.
type testCLI struct {
	Init   Init   `cmd:""`
	Demo   Demo   `cmd:""`
	Report Report `cmd:""`
}

// parse returns a context carrying the kong context for args, with output
// captured in the returned buffer.
func parse(
	t *testing.T,
	cli *testCLI,
	vars kong.Vars,
	args ...string,
) (context.Context, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer

	parser, err := kong.New(cli, vars, kong.Writers(&out, io.Discard))
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}

	return WithContext(context.Background(), ktx), &out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func readAll(t *testing.T, paths ...string) string {
	t.Helper()

	src, err := openSources(paths)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("reading sources: %v", err)
	}

	return string(data)
}

func TestOpenSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "first.coz", "first\n")
	second := writeFile(t, dir, "second.coz", "second\n")

	link := filepath.Join(dir, "link.coz")
	if err := os.Symlink(first, link); err != nil {
		t.Fatal(err)
	}

	rel, err := filepath.Rel(mustGetwd(t), first)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"single", []string{first}, "first\n"},
		{"ordered", []string{second, first}, "second\nfirst\n"},
		{"duplicate", []string{first, first, first}, "first\n"},
		{"symlink", []string{first, link}, "first\n"},
		{"relative", []string{rel, first, second}, "first\nsecond\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := readAll(t, tt.paths...); got != tt.want {
				t.Errorf("read %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenSources_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ok := writeFile(t, dir, "ok.coz", "ok\n")

	_, err := openSources([]string{ok, filepath.Join(dir, "missing.coz")})
	if !errors.Is(err, ErrReadProfile) {
		t.Fatalf("openSources error = %v, want %v", err, ErrReadProfile)
	}

	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap os.ErrNotExist", err)
	}
}

func TestOpenSources_Len(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.coz", "")
	b := writeFile(t, dir, "b.coz", "")

	src, err := openSources([]string{a, stdinSource, b, a, stdinSource})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Len() != 3 {
		t.Errorf("Len() = %d, want 3", src.Len())
	}
}

func mustGetwd(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	return wd
}

func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := ErrWriteConfig.Wrap(cause)

	if got, want := err.Error(), "write configuration file: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if !errors.Is(err, ErrWriteConfig) || !errors.Is(err, cause) {
		t.Errorf("errors.Is failed for %v", err)
	}

	if errors.Is(err, ErrReadProfile) {
		t.Errorf("%v matched an unrelated sentinel", err)
	}

	v := ErrWriteConfig.Wrap(cause).LogValue().Group()
	if len(v) != 2 || v[0].Value.String() != "write configuration file" ||
		v[1].Value.String() != "disk full" {
		t.Errorf("LogValue() = %v", v)
	}
}
