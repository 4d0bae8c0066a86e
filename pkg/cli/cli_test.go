package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testFlags struct {
	output  string
	verbose bool
	depth   int
	evals   []string
}

func newTestFlagSet() (*FlagSet, *testFlags) {
	v := &testFlags{}
	fs := NewFlagSet("test")
	fs.String(&v.output, "output", "o", "a.bin", "Output file", "file")
	fs.Bool(&v.verbose, "verbose", "v", false, "Verbose output")
	fs.Int(&v.depth, "max-depth", "", 64, "Nesting limit", "n")
	fs.List(&v.evals, "eval", "e", nil, "Evaluate an expression", "expr")
	return fs, v
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want testFlags
		rest []string
	}{
		{"defaults", []string{"in.asm"}, testFlags{output: "a.bin", depth: 64}, []string{"in.asm"}},
		{"long with equals", []string{"--output=x.bin", "--max-depth=8"}, testFlags{output: "x.bin", depth: 8}, []string{}},
		{"long with separate value", []string{"--output", "y.bin"}, testFlags{output: "y.bin", depth: 64}, []string{}},
		{"single dash long name", []string{"-max-depth", "3"}, testFlags{output: "a.bin", depth: 3}, []string{}},
		{"short attached", []string{"-oz.bin", "-v"}, testFlags{output: "z.bin", verbose: true, depth: 64}, []string{}},
		{"repeated list", []string{"-e", "1+1", "--eval", "start"}, testFlags{output: "a.bin", depth: 64, evals: []string{"1+1", "start"}}, []string{}},
		{"double dash", []string{"a.asm", "--", "-v", "b.asm"}, testFlags{output: "a.bin", depth: 64}, []string{"a.asm", "-v", "b.asm"}},
		{"explicit bool", []string{"--verbose=false", "-"}, testFlags{output: "a.bin", depth: 64}, []string{"-"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fs, got := newTestFlagSet()
			if err := fs.Parse(c.args); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.want, *got, cmp.AllowUnexported(testFlags{})); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(c.rest, fs.Args()); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--nope"},
		{"-q"},
		{"--output"},
		{"-o"},
		{"--max-depth=deep"},
		{"--verbose=maybe"},
	} {
		fs, _ := newTestFlagSet()
		if err := fs.Parse(args); err == nil {
			t.Errorf("Parse(%q) succeeded", args)
		}
	}
}

func TestFlagGroupSwitches(t *testing.T) {
	fs := NewFlagSet("test")
	entries := []FlagGroupEntry{
		{Name: "shadow", Prefix: "W", Usage: "Shadowing", Enabled: new(bool), Disabled: new(bool)},
		{Name: "extra", Prefix: "W", Usage: "Extra", Enabled: new(bool), Disabled: new(bool)},
	}
	fs.AddFlagGroup("Warning Flags", "Warnings", "warning", "Available Warnings:", entries)
	if err := fs.Parse([]string{"-Wshadow", "-Wno-extra"}); err != nil {
		t.Fatal(err)
	}
	if !*entries[0].Enabled || *entries[0].Disabled || *entries[1].Enabled || !*entries[1].Disabled {
		t.Error("group switches not recorded")
	}
}

func TestAppRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := NewApp("gasm")
	app.Synopsis = "[options] <input.asm> ..."
	app.Authors = []string{"someone"}
	app.Stdout, app.Stderr = &stdout, &stderr
	var verbose bool
	app.FlagSet.Bool(&verbose, "verbose", "v", false, "Verbose output")
	var got []string
	app.Action = func(args []string) error { got = args; return nil }

	if err := app.Run([]string{"-v", "x.asm"}); err != nil {
		t.Fatal(err)
	}
	if !verbose || len(got) != 1 || got[0] != "x.asm" {
		t.Errorf("verbose = %v, args = %v", verbose, got)
	}
}

func TestAppHelpAndUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := NewApp("gasm")
	app.Synopsis = "[options] <input.asm> ..."
	app.Stdout, app.Stderr = &stdout, &stderr
	called := false
	app.Action = func([]string) error { called = true; return nil }
	enabled, disabled := true, false
	app.FlagSet.AddFlagGroup("Warning Flags", "Warnings", "warning", "Available Warnings:",
		[]FlagGroupEntry{{Name: "shadow", Prefix: "W", Usage: "Shadowing", Enabled: &enabled, Disabled: &disabled}})

	if err := app.Run([]string{"--help"}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("action ran with --help")
	}
	help := stdout.String()
	for _, want := range []string{"Synopsis", "gasm [options] <input.asm> ...", "-h, --help", "Warning Flags", "-W<warning>", "-Wno-<warning>", "shadow"} {
		if !strings.Contains(help, want) {
			t.Errorf("help is missing %q:\n%s", want, help)
		}
	}
	if strings.Contains(help, "--Wshadow") {
		t.Error("group switch listed among the options")
	}

	err := newFailingApp(&stdout, &stderr).Run([]string{"--bogus"})
	if err == nil {
		t.Fatal("unknown flag accepted")
	}
	if !strings.HasPrefix(stderr.String(), "unknown flag: --bogus\nUsage: gasm") {
		t.Errorf("usage output:\n%s", stderr.String())
	}
}

func newFailingApp(stdout, stderr *bytes.Buffer) *App {
	app := NewApp("gasm")
	app.Stdout, app.Stderr = stdout, stderr
	app.Action = func([]string) error { return errors.New("action ran") }
	return app
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	if diff := cmp.Diff([]string{"one two", "three", "four"}, got); diff != "" {
		t.Errorf("wrapText mismatch (-want +got):\n%s", diff)
	}
}
