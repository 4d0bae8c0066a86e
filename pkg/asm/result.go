package asm

import (
	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
	"github.com/xplshn/gasm/pkg/eval"
	"github.com/xplshn/gasm/pkg/lexer"
	"github.com/xplshn/gasm/pkg/symbols"
	"github.com/xplshn/gasm/pkg/token"
)

// Segment is a run of contiguous bytes starting at Address.
type Segment struct {
	Address uint32
	Data    []byte
}

func (s Segment) End() uint32 { return s.Address + uint32(len(s.Data)) }

type Result struct {
	Segments []Segment
	Symbols  *symbols.Table
	Exports  []symbols.Symbol
	// Failed is set when any error was reported.
	Failed bool
	cfg    *config.Config
}

// Image flattens the segments into one buffer starting at the lowest address.
// Gaps are zero; where segments overlap the later one wins.
func (r *Result) Image() (base uint32, data []byte) {
	if len(r.Segments) == 0 {
		return 0, nil
	}
	// A segment may end exactly at 1<<32.
	end := func(s Segment) uint64 { return uint64(s.Address) + uint64(len(s.Data)) }
	lo, hi := uint64(r.Segments[0].Address), end(r.Segments[0])
	for _, s := range r.Segments[1:] {
		lo = min(lo, uint64(s.Address))
		hi = max(hi, end(s))
	}
	data = make([]byte, hi-lo)
	for _, s := range r.Segments {
		copy(data[uint64(s.Address)-lo:], s.Data)
	}
	return uint32(lo), data
}

// Evaluate evaluates expr against the final symbol table.
func (r *Result) Evaluate(expr string) (int64, error) {
	cfg := r.cfg
	if cfg == nil {
		cfg = config.NewConfig()
	}
	lx := lexer.NewLexer([]rune(expr), 0, "<expr>", cfg)
	src := newResolver(lx, r.Symbols, nil)
	v, err := eval.FromConfig(cfg, false).Evaluate(src)
	if err != nil {
		return 0, err
	}
	if tok := src.raw(); tok.Type != token.EOF && tok.Type != token.EOL {
		return 0, diag.New(diag.UnexpectedToken, tok.Text()).At(src.Position())
	}
	return v, nil
}
