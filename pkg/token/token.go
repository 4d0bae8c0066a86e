package token

type Type int

const (
	EOF Type = iota
	EOL
	Number
	Ident
	Punct
	Quoted
	String
	Other
)

var typeNames = map[Type]string{
	EOF:    "end of file",
	EOL:    "end of line",
	Number: "number",
	Ident:  "identifier",
	Punct:  "symbol",
	Quoted: "quoted literal",
	String: "string",
	Other:  "unknown",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "invalid"
}

// Token is a single lexeme. For Punct tokens Value holds the operator or
// punctuation text, for Number tokens the value in decimal, and for Quoted and
// String tokens the raw text between the quotes with escapes left undecoded.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// Is reports whether t is the punctuation or operator p.
func (t Token) Is(p string) bool { return t.Type == Punct && t.Value == p }

// Text returns a printable form of the token for diagnostics.
func (t Token) Text() string {
	switch t.Type {
	case EOF, EOL:
		return t.Type.String()
	case Quoted:
		return "'" + t.Value + "'"
	case String:
		return "\"" + t.Value + "\""
	}
	return t.Value
}

// Terminates reports whether t ends an expression: ')' ',' ']' '.' or the end
// of a line or file.
func (t Token) Terminates() bool {
	switch t.Type {
	case EOF, EOL:
		return true
	case Punct:
		switch t.Value {
		case ")", ",", "]", ".":
			return true
		}
	}
	return false
}
