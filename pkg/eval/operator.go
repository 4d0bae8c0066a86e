package eval

import "errors"

// precedence orders operators; a lower value binds tighter.
type precedence int

const (
	precNot precedence = iota
	precMul
	precAdd
	precShift
	precAnd
	precXor
	precOr
	precUnset
)

type operation int

const (
	opUnset operation = iota
	opNot
	opMul
	opDiv
	opMod
	opPlus
	opMinus
	opShl
	opShr
	opAnd
	opXor
	opOr
)

var opSymbols = [...]string{
	opUnset: "?", opNot: "~", opMul: "*", opDiv: "/", opMod: "%", opPlus: "+",
	opMinus: "-", opShl: "<<", opShr: ">>", opAnd: "&", opXor: "^", opOr: "|",
}

func (o operation) String() string { return opSymbols[o] }

type operator struct {
	op   operation
	prec precedence
}

var operators = map[string]operator{
	"~":  {opNot, precNot},
	"*":  {opMul, precMul},
	"/":  {opDiv, precMul},
	"%":  {opMod, precMul},
	"+":  {opPlus, precAdd},
	"-":  {opMinus, precAdd},
	"<<": {opShl, precShift},
	">>": {opShr, precShift},
	"&":  {opAnd, precAnd},
	"^":  {opXor, precXor},
	"|":  {opOr, precOr},
}

var errDivZero = errors.New("division by zero")

// apply computes a op b. Shift counts are taken as unsigned, so a negative or
// oversized count shifts everything out.
func apply(a, b int64, op operation) (int64, error) {
	switch op {
	case opNot:
		return ^a, nil
	case opMul:
		return a * b, nil
	case opDiv:
		if b == 0 {
			return 0, errDivZero
		}
		return a / b, nil
	case opMod:
		if b == 0 {
			return 0, errDivZero
		}
		return a % b, nil
	case opPlus:
		return a + b, nil
	case opMinus:
		return a - b, nil
	case opShl:
		return a << uint64(b), nil
	case opShr:
		return a >> uint64(b), nil
	case opAnd:
		return a & b, nil
	case opXor:
		return a ^ b, nil
	case opOr:
		return a | b, nil
	}
	return 0, nil
}
