package symbols

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/gasm/pkg/diag"
)

func mustDefine(t *testing.T, tab *Table, name string, addr uint32) {
	t.Helper()
	if err := tab.Define(name, addr); err != nil {
		t.Fatalf("Define(%q, %#x): %v", name, addr, err)
	}
}

func wantLookup(t *testing.T, tab *Table, name string, want uint32) {
	t.Helper()
	got, ok := tab.Lookup(name)
	if !ok {
		t.Fatalf("Lookup(%q) found nothing, want %#x", name, want)
	}
	if got != want {
		t.Errorf("Lookup(%q) = %#x, want %#x", name, got, want)
	}
}

func TestDefineLookup(t *testing.T) {
	tab := New()
	names := map[string]uint32{"start": 0x100, "loop": 0x104, "_x1": 0, "end": 0xffffffff}
	for n, a := range names {
		mustDefine(t, tab, n, a)
	}
	for n, a := range names {
		wantLookup(t, tab, n, a)
	}
	if _, ok := tab.Lookup("missing"); ok {
		t.Error("Lookup of an undefined name succeeded")
	}
	if tab.Count() != len(names) {
		t.Errorf("Count() = %d, want %d", tab.Count(), len(names))
	}
}

func TestDuplicateLabel(t *testing.T) {
	tab := New()
	mustDefine(t, tab, "main", 1)
	err := tab.Define("main", 2)
	if !errors.Is(err, diag.ErrDuplicateLabel) {
		t.Fatalf("second Define: err = %v, want duplicate label", err)
	}
	if got := err.Error(); got != "Label 'main' already defined." {
		t.Errorf("message = %q", got)
	}
	wantLookup(t, tab, "main", 1)

	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, tab, "inner", 3)
	if err := tab.Define("inner", 4); !errors.Is(err, diag.ErrDuplicateLabel) {
		t.Errorf("duplicate in the same local scope: err = %v", err)
	}
}

func TestRewriteMode(t *testing.T) {
	tab := New(WithRewrite())
	mustDefine(t, tab, "main", 1)
	mustDefine(t, tab, "main", 2)
	wantLookup(t, tab, "main", 2)
	if tab.Count() != 1 {
		t.Errorf("rewrite added a record: Count() = %d", tab.Count())
	}
}

func TestLocalScopes(t *testing.T) {
	tab := New()

	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, tab, "x", 1)
	tab.ScopeEnd()

	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, tab, "x", 2)
	wantLookup(t, tab, "x", 2)
	tab.ScopeEnd()

	if _, ok := tab.Lookup("x"); ok {
		t.Error("local symbol visible outside its scope")
	}
	mustDefine(t, tab, "x", 3)
	wantLookup(t, tab, "x", 3)

	// A fresh scope without its own x sees the global one.
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	wantLookup(t, tab, "x", 3)
	tab.ScopeEnd()
}

func TestLocalShadowsGlobal(t *testing.T) {
	tab := New()
	mustDefine(t, tab, "g", 1)
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, tab, "g", 2)
	wantLookup(t, tab, "g", 2)
	sym, _ := tab.Find("g")
	if !sym.Local() || sym.Scope != 1 {
		t.Errorf("Find(g) in scope = %+v, want the local record", sym)
	}
	tab.ScopeEnd()
	wantLookup(t, tab, "g", 1)
}

func TestScopeErrorsAndReset(t *testing.T) {
	tab := New()
	if tab.InScope() {
		t.Fatal("new table is in a scope")
	}
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	if err := tab.ScopeStart(); !errors.Is(err, diag.ErrAlreadyInLocalScope) {
		t.Errorf("nested ScopeStart: err = %v", err)
	}
	mustDefine(t, tab, "l", 7)
	tab.ScopeEnd()
	tab.ScopeEnd()
	if tab.InScope() {
		t.Error("ScopeEnd did not close the scope")
	}

	tab.ScopeReset()
	if tab.CurrentScope() != 0 {
		t.Fatalf("CurrentScope() = %d after reset", tab.CurrentScope())
	}
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	wantLookup(t, tab, "l", 7)
}

func TestTooManyScopes(t *testing.T) {
	tab := New()
	for i := 0; i < 65535; i++ {
		if err := tab.ScopeStart(); err != nil {
			t.Fatalf("scope %d: %v", i+1, err)
		}
		tab.ScopeEnd()
	}
	if err := tab.ScopeStart(); !errors.Is(err, diag.ErrTooManyScopes) {
		t.Errorf("scope 65536: err = %v", err)
	}
}

func TestDefineVariable(t *testing.T) {
	tab := New()
	for _, v := range []uint32{1, 5, 3} {
		if err := tab.DefineVariable("count", v); err != nil {
			t.Fatal(err)
		}
		wantLookup(t, tab, "count", v)
	}
	if tab.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tab.Count())
	}
	if sym, _ := tab.Find("count"); !sym.Writable {
		t.Error("variable is not writable")
	}

	mustDefine(t, tab, "label", 9)
	if err := tab.DefineVariable("label", 10); !errors.Is(err, diag.ErrAssignToConstant) {
		t.Errorf("DefineVariable on a label: err = %v", err)
	}
	wantLookup(t, tab, "label", 9)
}

func TestVariableIsGlobal(t *testing.T) {
	tab := New()
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	if err := tab.DefineVariable("v", 1); err != nil {
		t.Fatal(err)
	}
	tab.ScopeEnd()
	wantLookup(t, tab, "v", 1)
}

func TestNameTooLong(t *testing.T) {
	tab := New()
	mustDefine(t, tab, strings.Repeat("a", 254), 1)
	if err := tab.Define(strings.Repeat("b", 255), 1); !errors.Is(err, diag.ErrNameTooLong) {
		t.Errorf("255 byte name: err = %v", err)
	}
	if err := tab.DefineVariable(strings.Repeat("c", 300), 1); !errors.Is(err, diag.ErrNameTooLong) {
		t.Errorf("300 byte variable name: err = %v", err)
	}
}

func TestLock(t *testing.T) {
	tab := New()
	mustDefine(t, tab, "a", 1)
	if err := tab.DefineVariable("v", 1); err != nil {
		t.Fatal(err)
	}
	tab.Lock()
	if !tab.Locked() {
		t.Fatal("Locked() = false")
	}

	mustDefine(t, tab, "a", 2)
	mustDefine(t, tab, "b", 2)
	wantLookup(t, tab, "a", 1)
	if _, ok := tab.Lookup("b"); ok {
		t.Error("Define created a symbol on a locked table")
	}

	if err := tab.DefineVariable("w", 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := tab.Lookup("w"); ok {
		t.Error("DefineVariable created a symbol on a locked table")
	}
	if err := tab.DefineVariable("v", 8); err != nil {
		t.Fatal(err)
	}
	wantLookup(t, tab, "v", 8)
}

func TestExport(t *testing.T) {
	tab := New()
	mustDefine(t, tab, "main", 0x10)
	mustDefine(t, tab, "helper", 0x20)
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, tab, "local", 0x30)

	if err := tab.Export("local"); !errors.Is(err, diag.ErrExportOfLocalSymbol) {
		t.Errorf("Export(local): err = %v", err)
	}
	if err := tab.Export("nothing"); !errors.Is(err, diag.ErrUndefinedSymbol) {
		t.Errorf("Export(nothing): err = %v", err)
	}
	if n := tab.ExportedCount(); n != 0 {
		t.Fatalf("ExportedCount() = %d after failed exports", n)
	}
	tab.ScopeEnd()

	if err := tab.Export("main"); err != nil {
		t.Fatal(err)
	}
	if n := tab.ExportedCount(); n != 1 {
		t.Errorf("ExportedCount() = %d, want 1", n)
	}
	want := []Symbol{{Name: "main", Address: 0x10, Exported: true}}
	if diff := cmp.Diff(want, tab.Exports()); diff != "" {
		t.Errorf("Exports() mismatch (-want +got):\n%s", diff)
	}
}

func TestIteratorAcrossBlocks(t *testing.T) {
	tab := New(WithBlockSize(512))
	var want []string
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("sym%03d", i)
		mustDefine(t, tab, name, uint32(i))
		want = append(want, name)
	}
	if tab.arena.Blocks() < 2 {
		t.Fatalf("expected several blocks, got %d", tab.arena.Blocks())
	}

	it := tab.Iter()
	var got []string
	for s, ok := it.Next(); ok; s, ok = it.Next() {
		got = append(got, s.Name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("iteration order mismatch (-want +got):\n%s", diff)
	}
	if it.Count() != tab.Count() {
		t.Errorf("iterator counted %d, table has %d", it.Count(), tab.Count())
	}
	if _, ok := it.Next(); ok {
		t.Error("exhausted iterator restarted")
	}

	var seq []string
	for s := range tab.All() {
		seq = append(seq, s.Name)
		if len(seq) == 3 {
			break
		}
	}
	if diff := cmp.Diff(want[:3], seq); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
	for i := 0; i < 200; i += 37 {
		wantLookup(t, tab, want[i], uint32(i))
	}
}

func TestEmptyIterator(t *testing.T) {
	it := New().Iter()
	if _, ok := it.Next(); ok {
		t.Error("empty table yielded a symbol")
	}
	if it.Count() != 0 {
		t.Errorf("Count() = %d", it.Count())
	}
}

func TestOutOfMemory(t *testing.T) {
	tab := New(WithBlockSize(512), WithMaxBlocks(1))
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = tab.Define(fmt.Sprintf("sym%03d", i), 0)
	}
	if !errors.Is(err, diag.ErrOutOfMemory) {
		t.Fatalf("err = %v, want out of memory", err)
	}
	if tab.Count() == 0 || tab.Count() >= 100 {
		t.Errorf("Count() = %d", tab.Count())
	}
}

func TestPrint(t *testing.T) {
	tab := New()
	mustDefine(t, tab, "start", 0x100)
	if err := tab.ScopeStart(); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, tab, "loop", 0x104)
	tab.ScopeEnd()
	if err := tab.Export("start"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := tab.Print(&buf); err != nil {
		t.Fatal(err)
	}
	pad := func(s string) string { return strings.Repeat(" ", 30-len(s)) + s }
	want := pad("LABEL") + " ADDRESS  SCOPE\n" +
		pad("start") + " 00000100 0 EXPORTED\n" +
		pad("loop") + " 00000104 1\n" +
		" -> Total symbols: 2\n\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Print mismatch (-want +got):\n%s", diff)
	}
}

func TestRelease(t *testing.T) {
	tab := New()
	mustDefine(t, tab, "a", 1)
	tab.Release()
	if tab.Count() != 0 {
		t.Errorf("Count() = %d after Release", tab.Count())
	}
	mustDefine(t, tab, "a", 2)
	wantLookup(t, tab, "a", 2)
}
