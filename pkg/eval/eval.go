// Package eval evaluates integer expressions read from a token stream.
//
// The evaluator keeps at most three operands per nesting level and resolves
// precedence by recursing whenever a tighter operator follows a looser one.
// It consumes exactly the tokens of the expression: the terminator, or a '('
// that starts an addressing suffix such as 4(r2), is pushed back.
package eval

import (
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
	"github.com/xplshn/gasm/pkg/token"
)

// Tokenizer is the token source the evaluator reads from.
type Tokenizer interface {
	Next() token.Token
	PushBack(token.Token)
	// EscapeDecode decodes the escape sequence starting text and reports how
	// many bytes it used.
	EscapeDecode(text string) (b byte, consumed int, err error)
	Position() diag.Pos
}

type Evaluator struct {
	speculative bool
	maxDepth    int
	cEscapes    bool
}

type Option func(*Evaluator)

// WithSpeculative makes tokens that cannot be part of an expression, such as
// an identifier not yet in the symbol table, fail with diag.Unresolved rather
// than diag.UnexpectedToken. The first assembler pass runs this way.
func WithSpeculative(on bool) Option { return func(e *Evaluator) { e.speculative = on } }

func WithMaxDepth(n int) Option { return func(e *Evaluator) { e.maxDepth = n } }

// WithCEscapes controls whether a quoted literal starting with a backslash is
// decoded as an escape sequence.
func WithCEscapes(on bool) Option { return func(e *Evaluator) { e.cEscapes = on } }

func New(opts ...Option) *Evaluator {
	e := &Evaluator{maxDepth: config.DefaultMaxDepth, cEscapes: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxDepth <= 0 {
		e.maxDepth = config.DefaultMaxDepth
	}
	return e
}

// FromConfig builds an evaluator from the shared configuration.
func FromConfig(cfg *config.Config, speculative bool) *Evaluator {
	return New(
		WithSpeculative(speculative),
		WithMaxDepth(cfg.MaxDepth),
		WithCEscapes(cfg.IsFeatureEnabled(config.FeatCEsc)),
	)
}

func (e *Evaluator) Speculative() bool { return e.speculative }

// Evaluate reads one expression from src. An empty expression is 0.
func (e *Evaluator) Evaluate(src Tokenizer) (int64, error) {
	r := &run{Evaluator: e, src: src}
	last := operator{op: opUnset, prec: precUnset}
	return r.expr(0, &last)
}

// run is the state of a single Evaluate call.
type run struct {
	*Evaluator
	src   Tokenizer
	depth int
}

func (r *run) fail(kind diag.Kind, tok token.Token) error {
	pos := r.src.Position()
	if tok.Line != 0 {
		pos.Line, pos.Column = tok.Line, tok.Column
	}
	return diag.New(kind, tok.Text()).At(pos)
}

// keepTerminator returns a consumed terminator to the stream so the caller
// can resynchronise on it after an error.
func (r *run) keepTerminator(tok token.Token) {
	if tok.Terminates() {
		r.src.PushBack(tok)
	}
}

// unexpected rejects a token that has no place in an expression. Symbols are
// substituted before they get here, so an identifier is an unknown name.
func (r *run) unexpected(tok token.Token) error {
	switch {
	case r.speculative:
		return r.fail(diag.Unresolved, tok)
	case tok.Type == token.Ident:
		return r.fail(diag.UndefinedSymbol, tok)
	}
	return r.fail(diag.UnexpectedToken, tok)
}

func (r *run) enter(tok token.Token) error {
	r.depth++
	if r.depth > r.maxDepth {
		return r.fail(diag.NestingTooDeep, tok)
	}
	return nil
}

func (r *run) leave() { r.depth-- }

func (r *run) number(tok token.Token) (int64, error) {
	if v, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseUint(tok.Value, 10, 64); err == nil {
		return int64(v), nil
	}
	return 0, r.fail(diag.UnexpectedToken, tok)
}

// quoted turns a single-character literal into its byte value.
func (r *run) quoted(tok token.Token) (int64, error) {
	text := tok.Value
	if text == "" {
		return 0, r.fail(diag.UnexpectedToken, tok)
	}
	if text[0] == '\\' && r.cEscapes {
		b, n, err := r.src.EscapeDecode(text)
		if err != nil {
			return 0, r.fail(diag.UnexpectedToken, tok)
		}
		if n != len(text) {
			return 0, r.fail(diag.LiteralTooLong, tok)
		}
		return int64(b), nil
	}
	if len(text) != 1 {
		return 0, r.fail(diag.LiteralTooLong, tok)
	}
	return int64(text[0]), nil
}

func (r *run) reduce(a, b int64, o operator, tok token.Token) (int64, error) {
	v, err := apply(a, b, o.op)
	if err != nil {
		return 0, r.fail(diag.DivisionByZero, tok)
	}
	log.Tracef("eval: %d %s %d = %d", a, o.op, b, v)
	return v, nil
}

type previous int

const (
	prevNone previous = iota
	prevOperand
	prevOperator
)

// expr evaluates from num with last as the operator pending in the caller.
// last is shared with the caller: it is replaced when a new operator takes
// over at this level.
func (r *run) expr(num int64, last *operator) (int64, error) {
	var tok token.Token
	if err := r.enter(tok); err != nil {
		return 0, err
	}
	defer r.leave()

	var stack [3]int64
	stack[0] = num
	sp := 1
	oper := *last
	prev := prevNone

	for {
		tok = r.src.Next()

		if sp == 3 && oper.op == opUnset {
			r.keepTerminator(tok)
			return 0, r.fail(diag.OperandStackOverflow, tok)
		}

		isNum := false
		var val int64
		switch tok.Type {
		case token.Quoted:
			v, err := r.quoted(tok)
			if err != nil {
				return 0, err
			}
			val, isNum = v, true
		case token.Number:
			v, err := r.number(tok)
			if err != nil {
				return 0, err
			}
			val, isNum = v, true
		}

		if tok.Is("(") {
			if prev == prevOperand && oper.op != opUnset {
				if sp < 2 {
					return 0, r.fail(diag.UnexpectedToken, tok)
				}
				v, err := r.reduce(stack[sp-2], stack[sp-1], *last, tok)
				if err != nil {
					return 0, err
				}
				stack[sp-2] = v
				sp--
				r.src.PushBack(tok)
				return stack[sp-1], nil
			}
			if oper.op == opUnset && sp == 2 {
				r.src.PushBack(tok)
				return stack[1], nil
			}

			inner := operator{op: opUnset, prec: precUnset}
			v, err := r.expr(0, &inner)
			if err != nil {
				return 0, err
			}
			prev = prevOperand
			if sp == 3 {
				return 0, r.fail(diag.OperandStackOverflow, tok)
			}
			stack[sp] = v
			sp++
			if closing := r.src.Next(); !closing.Is(")") {
				r.keepTerminator(closing)
				return 0, r.fail(diag.UnmatchedParenthesis, closing)
			}
			continue
		}

		if tok.Terminates() {
			r.src.PushBack(tok)
			break
		}

		if isNum {
			prev = prevOperand
			if sp == 3 {
				return 0, r.fail(diag.OperandStackOverflow, tok)
			}
			stack[sp] = val
			sp++
			continue
		}

		if tok.Type != token.Punct {
			return 0, r.unexpected(tok)
		}

		prev = prevOperator
		saved := oper
		o, ok := operators[tok.Value]
		if !ok {
			return 0, r.fail(diag.UnknownOperator, tok)
		}
		oper = o

		if oper.op == opNot {
			v, err := r.unary(opNot)
			if err != nil {
				return 0, err
			}
			if sp == 3 {
				return 0, r.fail(diag.OperandStackOverflow, tok)
			}
			stack[sp] = v
			sp++
			oper = saved
			prev = prevOperand
			continue
		}

		switch {
		case last.prec == precUnset:
			*last = oper
		case last.prec > oper.prec:
			// The pending operator binds more loosely, so the new one takes
			// the top operand into a nested evaluation.
			v, err := r.expr(stack[sp-1], &oper)
			if err != nil {
				return 0, err
			}
			stack[sp-1] = v
		default:
			if sp < 2 {
				return 0, r.fail(diag.UnexpectedToken, tok)
			}
			v, err := r.reduce(stack[sp-2], stack[sp-1], *last, tok)
			if err != nil {
				return 0, err
			}
			stack[sp-2] = v
			sp--
			*last = oper
		}
	}

	if last.op != opUnset {
		if sp < 2 {
			return 0, r.fail(diag.UnexpectedToken, tok)
		}
		v, err := r.reduce(stack[sp-2], stack[sp-1], *last, tok)
		if err != nil {
			return 0, err
		}
		stack[sp-2] = v
		sp--
	}
	return stack[sp-1], nil
}

// unary reads one operand and applies op (opNot or opMinus) to it. The
// operand is a number, a parenthesised expression or another unary.
func (r *run) unary(op operation) (int64, error) {
	tok := r.src.Next()
	if err := r.enter(tok); err != nil {
		return 0, err
	}
	defer r.leave()

	var (
		v   int64
		err error
	)
	switch {
	case tok.Is("-"):
		v, err = r.unary(opMinus)
	case tok.Is("~"):
		v, err = r.unary(opNot)
	case tok.Type == token.Number:
		v, err = r.number(tok)
	case tok.Is("("):
		inner := operator{op: opUnset, prec: precUnset}
		if v, err = r.expr(0, &inner); err == nil {
			if closing := r.src.Next(); !closing.Is(")") {
				r.keepTerminator(closing)
				err = r.fail(diag.UnmatchedParenthesis, closing)
			}
		}
	default:
		r.keepTerminator(tok)
		err = r.unexpected(tok)
	}
	if err != nil {
		return 0, err
	}
	if op == opNot {
		return ^v, nil
	}
	return -v, nil
}
