package sample

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"main.go", "/src/app/main.go", true},
		{"app/*.go", "/src/app/main.go", true},
		{"src/*.go", "/src/app/main.go", false},
		{"/src/**/*.go", "/src/app/internal/x.go", true},
		{"/app/*.go", "/src/app/main.go", false},
		{"**", "/anything/at/all.c", true},
		{"app/**", "/src/app/a/b/c.go", true},
		{"**/internal/*.go", "/src/app/internal/x.go", true},
		{"[", "/src/app/main.go", false},
		{"", "/src/app/main.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := Match(tt.pattern, tt.name); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}

func TestScope_Contains(t *testing.T) {
	user := Frame{File: "/src/app/work.go", Function: "example.com/app.work"}
	mainFn := Frame{File: "/src/app/main.go", Function: "main.main.func1"}
	std := Frame{File: "/go/src/fmt/print.go", Function: "fmt.Fprintf"}
	self := Frame{File: "/mod/delay/engine.go", Function: "github.com/ardnew/causal/delay.(*Engine).Visit"}
	vendor := Frame{File: "/src/app/vendor/x/y.go", Function: "x.org/y.Z"}

	tests := []struct {
		name  string
		scope Scope
		frame Frame
		want  bool
	}{
		{"default user", NewScope(nil, nil), user, true},
		{"default main", NewScope(nil, nil), mainFn, true},
		{"default std", NewScope(nil, nil), std, false},
		{"default self", NewScope(nil, nil), self, false},
		{"include match", NewScope([]string{"app/work.go"}, nil), user, true},
		{"include miss", NewScope([]string{"app/work.go"}, nil), mainFn, false},
		{"include std", NewScope([]string{"fmt/*.go"}, nil), std, true},
		{"include cannot admit self", NewScope([]string{"**"}, nil), self, false},
		{"exclude", NewScope(nil, []string{"vendor/**"}), vendor, false},
		{"blank patterns", NewScope([]string{" "}, nil), user, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Contains(tt.frame); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.frame.Function, got, tt.want)
			}
		})
	}
}

func TestPackagePath(t *testing.T) {
	tests := map[string]string{
		"main.main":                       "main",
		"fmt.Println":                     "fmt",
		"net/http.(*Server).Serve":        "net/http",
		"github.com/a/b.(*T).M":           "github.com/a/b",
		"github.com/a/b.F.func1":          "github.com/a/b",
		"github.com/a/b.Generic[...].Run": "github.com/a/b",
	}

	for fn, want := range tests {
		if got := packagePath(fn); got != want {
			t.Errorf("packagePath(%q) = %q, want %q", fn, got, want)
		}
	}
}
