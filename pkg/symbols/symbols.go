// Package symbols implements the assembler's scoped symbol table. Records
// live in a pooled arena and are never removed; a single local scope may be
// open at a time, shadowing the global scope.
package symbols

import (
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"github.com/xplshn/gasm/pkg/arena"
	"github.com/xplshn/gasm/pkg/diag"
)

// Symbol is a copy of one table entry. Scope 0 is global.
type Symbol struct {
	Name     string
	Address  uint32
	Scope    uint16
	Writable bool
	Exported bool
}

func (s Symbol) Local() bool { return s.Scope != 0 }

type Table struct {
	arena        *arena.Arena
	blockSize    int
	maxBlocks    int
	rewrite      bool
	locked       bool
	inScope      bool
	currentScope uint32
}

type Option func(*Table)

// WithRewrite makes Define overwrite the address of an existing symbol instead
// of failing with DuplicateLabel. It exists for tests that redefine labels.
func WithRewrite() Option { return func(t *Table) { t.rewrite = true } }

func WithBlockSize(n int) Option { return func(t *Table) { t.blockSize = n } }

// WithMaxBlocks caps the number of arena blocks; exceeding it yields
// diag.OutOfMemory.
func WithMaxBlocks(n int) Option { return func(t *Table) { t.maxBlocks = n } }

func New(opts ...Option) *Table {
	t := &Table{blockSize: arena.DefaultBlockSize}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Release frees all records. The table is empty afterwards.
func (t *Table) Release() {
	if t.arena != nil {
		t.arena.Release()
	}
	t.arena = nil
}

func (t *Table) first() *arena.Block {
	if t.arena == nil {
		return nil
	}
	return t.arena.First()
}

// each calls fn for every record in insertion order until fn returns false.
func (t *Table) each(fn func(record) bool) {
	for b := t.first(); b != nil; b = b.Next() {
		for off := 0; off < b.Used(); {
			r := record(b.At(off))
			if !fn(r) {
				return
			}
			off += r.size()
		}
	}
}

func (t *Table) scan(name string, sum uint64, scope uint16) record {
	var found record
	t.each(func(r record) bool {
		if r.scope() == scope && r.matches(name, sum) {
			found = r
			return false
		}
		return true
	})
	return found
}

// find looks in the open local scope first, then in the global scope.
func (t *Table) find(name string) record {
	sum := xxhash.Sum64String(name)
	if t.inScope {
		if r := t.scan(name, sum, uint16(t.currentScope)); r != nil {
			return r
		}
	}
	return t.scan(name, sum, 0)
}

func (t *Table) insert(name string, addr uint32, scope uint16, flags byte) error {
	if len(name)+1 > maxNameLen {
		return diag.New(diag.NameTooLong, name)
	}
	if t.arena == nil {
		var opts []arena.Option
		if t.maxBlocks > 0 {
			opts = append(opts, arena.WithMaxBlocks(t.maxBlocks))
		}
		t.arena = arena.New(t.blockSize, opts...)
	}
	size := headerSize + len(name) + 1
	h, err := t.arena.Alloc(size)
	if err != nil {
		return err
	}
	encode(h.Bytes(size), name, addr, scope, flags)
	log.Tracef("symbols: %s = %#x (scope %d, flags %#x)", name, addr, scope, flags)
	return nil
}

// Define creates a label or constant. Outside a local scope any existing
// symbol of the same name collides; inside one only a symbol of the same
// local scope does. Define is a no-op once the table is locked.
func (t *Table) Define(name string, address uint32) error {
	if t.locked {
		return nil
	}
	if r := t.find(name); r != nil {
		if t.rewrite {
			r.setAddress(address)
			return nil
		}
		if !t.inScope || uint32(r.scope()) == t.currentScope {
			return diag.New(diag.DuplicateLabel, name)
		}
	}
	var scope uint16
	if t.inScope {
		scope = uint16(t.currentScope)
	}
	return t.insert(name, address, scope, 0)
}

// DefineVariable sets a writable symbol, creating it in the global scope when
// it does not exist yet.
func (t *Table) DefineVariable(name string, address uint32) error {
	r := t.find(name)
	switch {
	case r == nil:
		if t.locked {
			return nil
		}
		return t.insert(name, address, 0, flagWritable)
	case r.writable():
		r.setAddress(address)
		return nil
	}
	return diag.New(diag.AssignToConstant, name)
}

func (t *Table) Lookup(name string) (uint32, bool) {
	r := t.find(name)
	if r == nil {
		return 0, false
	}
	return r.address(), true
}

// Find is Lookup returning the whole entry.
func (t *Table) Find(name string) (Symbol, bool) {
	r := t.find(name)
	if r == nil {
		return Symbol{}, false
	}
	return r.symbol(), true
}

// Export marks a global symbol as visible to the linker.
func (t *Table) Export(name string) error {
	r := t.find(name)
	if r == nil {
		return diag.New(diag.UndefinedSymbol, name)
	}
	if r.scope() != 0 {
		return diag.New(diag.ExportOfLocalSymbol, name)
	}
	r.setFlag(flagExported)
	return nil
}

// Lock makes every later Define a no-op. It cannot be undone.
func (t *Table) Lock()        { t.locked = true }
func (t *Table) Locked() bool { return t.locked }

func (t *Table) ScopeStart() error {
	if t.inScope {
		return diag.New(diag.AlreadyInLocalScope, "")
	}
	if t.currentScope >= math.MaxUint16 {
		return diag.New(diag.TooManyScopes, "")
	}
	t.inScope = true
	t.currentScope++
	return nil
}

func (t *Table) ScopeEnd() { t.inScope = false }

// ScopeReset restarts scope numbering for a new pass. Records keep the ids
// they were created with, so the n-th scope of the next pass sees the locals
// of the n-th scope of the previous one.
func (t *Table) ScopeReset() { t.currentScope = 0 }

func (t *Table) InScope() bool        { return t.inScope }
func (t *Table) CurrentScope() uint32 { return t.currentScope }

func (t *Table) Count() int {
	n := 0
	t.each(func(record) bool { n++; return true })
	return n
}

func (t *Table) ExportedCount() int {
	n := 0
	t.each(func(r record) bool {
		if r.exported() {
			n++
		}
		return true
	})
	return n
}

// Exports returns the exported symbols in definition order.
func (t *Table) Exports() []Symbol {
	var out []Symbol
	t.each(func(r record) bool {
		if r.exported() {
			out = append(out, r.symbol())
		}
		return true
	})
	return out
}

// Iterator walks the table in insertion order. It cannot be rewound; once
// Next has returned false it keeps doing so.
type Iterator struct {
	t       *Table
	blk     *arena.Block
	off     int
	count   int
	started bool
	done    bool
}

func (t *Table) Iter() *Iterator { return &Iterator{t: t} }

func (it *Iterator) Next() (Symbol, bool) {
	if it.done {
		return Symbol{}, false
	}
	if !it.started {
		it.blk, it.started = it.t.first(), true
	}
	for it.blk != nil {
		if it.off < it.blk.Used() {
			r := record(it.blk.At(it.off))
			it.off += r.size()
			it.count++
			return r.symbol(), true
		}
		it.blk, it.off = it.blk.Next(), 0
	}
	it.done = true
	return Symbol{}, false
}

// Count is the number of symbols returned so far.
func (it *Iterator) Count() int { return it.count }

func (t *Table) All() iter.Seq[Symbol] {
	return func(yield func(Symbol) bool) {
		it := t.Iter()
		for s, ok := it.Next(); ok; s, ok = it.Next() {
			if !yield(s) {
				return
			}
		}
	}
}

// Print writes a listing of every symbol followed by the total.
func (t *Table) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%30s ADDRESS  SCOPE\n", "LABEL"); err != nil {
		return err
	}
	it := t.Iter()
	for s, ok := it.Next(); ok; s, ok = it.Next() {
		exported := ""
		if s.Exported {
			exported = " EXPORTED"
		}
		if _, err := fmt.Fprintf(w, "%30s %08x %d%s\n", s.Name, s.Address, s.Scope, exported); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, " -> Total symbols: %d\n\n", it.Count())
	return err
}
