package profile

import (
	"slices"
	"testing"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	got := Config{}
	for _, opt := range []Option{WithMode("cpu"), WithPath("/tmp/p"), WithQuiet(true)} {
		got = opt(got)
	}

	if want := (Config{Mode: "cpu", Path: "/tmp/p", Quiet: true}); got != want {
		t.Errorf("Config = %+v, want %+v", got, want)
	}
}

func TestStart_NoMode(t *testing.T) {
	t.Parallel()

	s := Start(WithPath(t.TempDir()))
	if _, ok := s.(ignore); !ok {
		t.Errorf("Start without mode = %T, want no-op", s)
	}

	s.Stop()
}

func TestStart_UnknownMode(t *testing.T) {
	t.Parallel()

	if slices.Contains(Modes(), "bogus") {
		t.Fatal("bogus is a mode")
	}

	s := Start(WithMode("bogus"), WithPath(t.TempDir()))
	if _, ok := s.(ignore); !ok {
		t.Errorf("Start with unknown mode = %T, want no-op", s)
	}

	s.Stop()
}
