// Package diag holds the error taxonomy shared by the symbol table, the
// expression evaluator and the pass driver, and a reporter that prints
// diagnostics with their source location.
package diag

import "fmt"

type Kind int

const (
	DuplicateLabel Kind = iota
	NameTooLong
	AssignToConstant
	ExportOfLocalSymbol
	UndefinedSymbol
	AlreadyInLocalScope
	TooManyScopes
	UnmatchedParenthesis
	OperandStackOverflow
	UnknownOperator
	LiteralTooLong
	UnexpectedToken
	DivisionByZero
	NestingTooDeep
	Unresolved
	AddressOverflow
	RecordTooLarge
	OutOfMemory
)

var kindNames = [...]string{
	DuplicateLabel:       "duplicate label",
	NameTooLong:          "name too long",
	AssignToConstant:     "assignment to constant",
	ExportOfLocalSymbol:  "export of local symbol",
	UndefinedSymbol:      "undefined symbol",
	AlreadyInLocalScope:  "already in local scope",
	TooManyScopes:        "too many scopes",
	UnmatchedParenthesis: "unmatched parenthesis",
	OperandStackOverflow: "operand stack overflow",
	UnknownOperator:      "unknown operator",
	LiteralTooLong:       "literal too long",
	UnexpectedToken:      "unexpected token",
	DivisionByZero:       "division by zero",
	NestingTooDeep:       "expression nested too deeply",
	Unresolved:           "unresolved",
	AddressOverflow:      "address overflow",
	RecordTooLarge:       "record too large",
	OutOfMemory:          "out of memory",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pos is a source location. A zero Line means the location is unknown.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	switch {
	case p.Line == 0:
		return p.File
	case p.Column == 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is the concrete error returned by every gasm component. Subject names
// the offending symbol or token text.
type Error struct {
	Kind    Kind
	Subject string
	Pos     Pos
}

func New(kind Kind, subject string) *Error { return &Error{Kind: kind, Subject: subject} }

// At returns a copy of e attributed to pos.
func (e *Error) At(pos Pos) *Error {
	c := *e
	c.Pos = pos
	return &c
}

func (e *Error) Message() string {
	s := e.Subject
	switch e.Kind {
	case DuplicateLabel:
		return fmt.Sprintf("Label '%s' already defined.", s)
	case NameTooLong:
		return fmt.Sprintf("Label '%s' is too big.", s)
	case AssignToConstant:
		return fmt.Sprintf("Cannot assign to constant '%s'.", s)
	case ExportOfLocalSymbol:
		return fmt.Sprintf("Cannot export local variable '%s'.", s)
	case UndefinedSymbol:
		return fmt.Sprintf("Undefined symbol '%s'.", s)
	case AlreadyInLocalScope:
		return "Already in a local scope."
	case TooManyScopes:
		return "Too many local scopes."
	case UnmatchedParenthesis:
		return "No matching ')'"
	case OperandStackOverflow:
		if s == "" {
			return "Malformed expression: too many operands."
		}
		return fmt.Sprintf("Malformed expression: too many operands at '%s'.", s)
	case UnknownOperator:
		return fmt.Sprintf("Unknown operator '%s'.", s)
	case LiteralTooLong:
		return "Quoted literal too long."
	case UnexpectedToken:
		return fmt.Sprintf("Unexpected token '%s'.", s)
	case DivisionByZero:
		return "Division by zero."
	case NestingTooDeep:
		return "Expression nested too deeply."
	case Unresolved:
		return fmt.Sprintf("Cannot resolve '%s' yet.", s)
	case AddressOverflow:
		return fmt.Sprintf("Data at 0x%s runs past the end of the address space.", s)
	case RecordTooLarge:
		return fmt.Sprintf("Record of %s bytes does not fit in a block.", s)
	case OutOfMemory:
		return "Out of memory."
	}
	return e.Kind.String()
}

func (e *Error) Error() string {
	if e.Pos.File == "" && e.Pos.Line == 0 {
		return e.Message()
	}
	return e.Pos.String() + ": " + e.Message()
}

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, diag.ErrDuplicateLabel).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Fatal reports whether the run must stop.
func (e *Error) Fatal() bool { return e.Kind == OutOfMemory }

// Quiet reports whether the error stands for "not resolvable yet" during a
// speculative pass and should not be shown to the user.
func (e *Error) Quiet() bool { return e.Kind == Unresolved }

var (
	ErrDuplicateLabel       = New(DuplicateLabel, "")
	ErrNameTooLong          = New(NameTooLong, "")
	ErrAssignToConstant     = New(AssignToConstant, "")
	ErrExportOfLocalSymbol  = New(ExportOfLocalSymbol, "")
	ErrUndefinedSymbol      = New(UndefinedSymbol, "")
	ErrAlreadyInLocalScope  = New(AlreadyInLocalScope, "")
	ErrTooManyScopes        = New(TooManyScopes, "")
	ErrUnmatchedParenthesis = New(UnmatchedParenthesis, "")
	ErrOperandStackOverflow = New(OperandStackOverflow, "")
	ErrUnknownOperator      = New(UnknownOperator, "")
	ErrLiteralTooLong       = New(LiteralTooLong, "")
	ErrUnexpectedToken      = New(UnexpectedToken, "")
	ErrDivisionByZero       = New(DivisionByZero, "")
	ErrNestingTooDeep       = New(NestingTooDeep, "")
	ErrUnresolved           = New(Unresolved, "")
	ErrAddressOverflow      = New(AddressOverflow, "")
	ErrRecordTooLarge       = New(RecordTooLarge, "")
	ErrOutOfMemory          = New(OutOfMemory, "")
)
