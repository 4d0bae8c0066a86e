package asm

import (
	"strconv"

	"github.com/xplshn/gasm/pkg/lexer"
	"github.com/xplshn/gasm/pkg/symbols"
	"github.com/xplshn/gasm/pkg/token"
)

// resolver feeds the evaluator. Identifiers found in the symbol table and the
// '$' location counter come out as Number tokens; everything else passes
// through untouched.
type resolver struct {
	*lexer.Lexer
	table *symbols.Table
	here  *uint32
}

func newResolver(lx *lexer.Lexer, table *symbols.Table, here *uint32) *resolver {
	return &resolver{Lexer: lx, table: table, here: here}
}

func (r *resolver) Next() token.Token {
	tok := r.Lexer.Next()
	switch {
	case tok.Type == token.Ident:
		if v, ok := r.table.Lookup(tok.Value); ok {
			// Symbol values are 32-bit; negative constants come back negative.
			tok.Type, tok.Value = token.Number, strconv.FormatInt(int64(int32(v)), 10)
		}
	case tok.Is("$") && r.here != nil:
		tok.Type, tok.Value = token.Number, strconv.FormatUint(uint64(*r.here), 10)
	}
	return tok
}

// raw reads the next token without substitution, for label and directive
// names that may already be in the table.
func (r *resolver) raw() token.Token { return r.Lexer.Next() }
