// Package asm is a small data-only assembler built on the symbol table and the
// expression evaluator. It runs the classic two passes: the first collects
// label addresses while tolerating forward references, the second evaluates
// everything for real and emits bytes.
package asm

import (
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
	"github.com/xplshn/gasm/pkg/eval"
	"github.com/xplshn/gasm/pkg/lexer"
	"github.com/xplshn/gasm/pkg/symbols"
	"github.com/xplshn/gasm/pkg/token"
)

type Assembler struct {
	cfg      *config.Config
	rep      *diag.Reporter
	table    *symbols.Table
	eval     *eval.Evaluator
	pass     int
	address  uint32
	segments []Segment
	src      *resolver
	scopeTok token.Token
}

// New prepares an assembler. A nil reporter discards diagnostics; they are
// still counted.
func New(cfg *config.Config, rep *diag.Reporter) *Assembler {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if rep == nil {
		rep = diag.NewReporter(io.Discard, cfg)
	}
	opts := []symbols.Option{symbols.WithBlockSize(cfg.BlockSize), symbols.WithMaxBlocks(cfg.MaxBlocks)}
	if cfg.IsFeatureEnabled(config.FeatRewrite) {
		opts = append(opts, symbols.WithRewrite())
	}
	return &Assembler{cfg: cfg, rep: rep, table: symbols.New(opts...)}
}

// Assemble runs both passes over files, in order, as one translation unit.
// The returned error is non-nil only for fatal conditions; ordinary errors
// are reported and flagged in Result.Failed.
func (a *Assembler) Assemble(files []diag.SourceFile) (*Result, error) {
	a.rep.SetSourceFiles(files)
	for pass := 1; pass <= 2; pass++ {
		a.beginPass(pass)
		for i, f := range files {
			if err := a.assembleFile(i, f); err != nil {
				return nil, err
			}
		}
		if a.table.InScope() {
			if pass == 2 {
				a.rep.Warn(config.WarnExtra, a.scopeTok, "local scope opened here is never closed")
			}
			a.table.ScopeEnd()
		}
		log.Debugf("asm: pass %d done, %d symbols, address 0x%x", pass, a.table.Count(), a.address)
		if pass == 1 {
			a.table.Lock()
		}
	}
	return &Result{
		Segments: a.segments,
		Symbols:  a.table,
		Exports:  a.table.Exports(),
		Failed:   a.rep.Failed(),
		cfg:      a.cfg,
	}, nil
}

func (a *Assembler) beginPass(pass int) {
	log.Debugf("asm: starting pass %d", pass)
	a.pass = pass
	a.address = 0
	a.segments = nil
	a.table.ScopeEnd()
	a.table.ScopeReset()
	a.eval = eval.FromConfig(a.cfg, pass == 1)
}

func (a *Assembler) assembleFile(index int, f diag.SourceFile) error {
	lx := lexer.NewLexer(f.Content, index, f.Name, a.cfg)
	a.src = newResolver(lx, a.table, &a.address)
	for {
		tok := a.src.raw()
		if tok.Type == token.EOF {
			return nil
		}
		if err := a.line(tok); err != nil {
			return err
		}
	}
}

// report prints err in the pass where it belongs. It returns err only when
// the run must stop. Definitions are ignored by the locked table in pass 2, so
// their errors surface in pass 1; everything else waits for pass 2, when every
// label is known.
func (a *Assembler) report(err error, tok token.Token) error {
	var de *diag.Error
	firstPass := errors.As(err, &de) && (de.Kind == diag.DuplicateLabel || de.Kind == diag.NameTooLong)
	fatal := de != nil && de.Fatal()
	if fatal || (a.pass == 1) == firstPass {
		a.rep.Report(err, tok)
	}
	if fatal {
		return err
	}
	return nil
}

// skipLine drops the rest of the current line.
func (a *Assembler) skipLine() {
	for {
		tok := a.src.raw()
		if tok.Type == token.EOL {
			return
		}
		if tok.Type == token.EOF {
			a.src.PushBack(tok)
			return
		}
	}
}

// endLine requires the line to be over.
func (a *Assembler) endLine() error {
	tok := a.src.raw()
	switch tok.Type {
	case token.EOL:
		return nil
	case token.EOF:
		a.src.PushBack(tok)
		return nil
	}
	err := a.report(diag.New(diag.UnexpectedToken, tok.Text()), tok)
	a.skipLine()
	return err
}

func (a *Assembler) line(tok token.Token) error {
	switch {
	case tok.Type == token.EOL:
		return nil
	case tok.Type == token.Ident:
		next := a.src.raw()
		switch {
		case next.Is(":"):
			if err := a.label(tok); err != nil {
				return err
			}
			rest := a.src.raw()
			if rest.Type == token.EOF {
				a.src.PushBack(rest)
				return nil
			}
			return a.line(rest)
		case next.Is("="):
			return a.assign(tok, true)
		case next.Type == token.Ident && strings.EqualFold(next.Value, "equ"):
			return a.assign(tok, false)
		}
		a.src.PushBack(next)
		if a.pass == 2 {
			a.rep.Errorf(tok, "Unknown instruction '%s'.", tok.Value)
		}
		a.skipLine()
		return nil
	case tok.Is("."):
		name := a.src.raw()
		if name.Type != token.Ident {
			err := a.report(diag.New(diag.UnexpectedToken, name.Text()), name)
			a.skipLine()
			return err
		}
		return a.directive(name)
	}
	err := a.report(diag.New(diag.UnexpectedToken, tok.Text()), tok)
	a.skipLine()
	return err
}

func (a *Assembler) label(tok token.Token) error {
	name := tok.Value
	if a.pass == 2 {
		if addr, ok := a.table.Lookup(name); ok && addr != a.address {
			a.rep.Errorf(tok, "phase error: label '%s' moved from 0x%x to 0x%x.", name, addr, a.address)
		}
		return nil
	}
	if a.table.InScope() {
		if s, ok := a.table.Find(name); ok && !s.Local() {
			a.rep.Warn(config.WarnShadow, tok, "local label '%s' shadows a global symbol", name)
		}
	}
	if err := a.table.Define(name, a.address); err != nil {
		return a.report(err, tok)
	}
	return nil
}

// assign handles "name equ expr" and "name = expr", after the operator.
func (a *Assembler) assign(name token.Token, variable bool) error {
	v, err := a.eval.Evaluate(a.src)
	if err != nil {
		a.skipLine()
		return a.report(err, name)
	}
	if err := a.define(name, v, variable); err != nil {
		a.skipLine()
		return err
	}
	return a.endLine()
}

func (a *Assembler) define(name token.Token, v int64, variable bool) error {
	if a.pass == 2 && !variable {
		// Pass 1 could not evaluate it, and the locked table no longer
		// accepts the definition.
		if _, ok := a.table.Lookup(name.Value); !ok {
			a.rep.Errorf(name, "Constant '%s' depends on a symbol defined after it.", name.Value)
		}
		return nil
	}
	var err error
	if variable {
		err = a.table.DefineVariable(name.Value, uint32(v))
	} else {
		err = a.table.Define(name.Value, uint32(v))
	}
	if err != nil {
		return a.report(err, name)
	}
	return nil
}

// emit appends data at the location counter, opening a new segment when the
// counter has moved away from the end of the current one. Pass 1 only
// advances the counter. Data that would run past 0xFFFFFFFF is refused and
// the counter stays put.
func (a *Assembler) emit(data []byte) error {
	if uint64(a.address)+uint64(len(data)) > math.MaxUint32 {
		return diag.New(diag.AddressOverflow, strconv.FormatUint(uint64(a.address), 16))
	}
	if a.pass == 2 {
		n := len(a.segments)
		if n == 0 || a.segments[n-1].End() != a.address {
			a.segments = append(a.segments, Segment{Address: a.address})
			n++
		}
		a.segments[n-1].Data = append(a.segments[n-1].Data, data...)
	}
	a.address += uint32(len(data))
	return nil
}
