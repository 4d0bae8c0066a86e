package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
	"github.com/xplshn/gasm/pkg/token"
)

// Lexer splits assembler source into tokens. Malformed input never stops it:
// a bad number or an unterminated quote comes back as an Other token holding
// the raw text, and whoever consumes it reports the error.
type Lexer struct {
	source    []rune
	fileIndex int
	fileName  string
	pos       int
	line      int
	column    int
	cfg       *config.Config
	pushed    []token.Token
}

func NewLexer(source []rune, fileIndex int, fileName string, cfg *config.Config) *Lexer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Lexer{
		source: source, fileIndex: fileIndex, fileName: fileName, line: 1, column: 1, cfg: cfg,
	}
}

// PushBack returns tok to the stream; the next call to Next yields it again.
// Pushed tokens come back in LIFO order.
func (l *Lexer) PushBack(tok token.Token) { l.pushed = append(l.pushed, tok) }

// Position is the location of the scanner, past any pushed back tokens.
func (l *Lexer) Position() diag.Pos {
	return diag.Pos{File: l.fileName, Line: l.line, Column: l.column}
}

func (l *Lexer) EscapeDecode(text string) (byte, int, error) { return DecodeEscape(text) }

func (l *Lexer) Next() token.Token {
	if n := len(l.pushed); n > 0 {
		tok := l.pushed[n-1]
		l.pushed = l.pushed[:n-1]
		return tok
	}

	l.skipWhitespaceAndComments()
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine)
	}

	ch := l.peek()
	if ch == '\n' {
		l.advance()
		return l.makeToken(token.EOL, "", startPos, startCol, startLine)
	}
	if isIdentStart(ch) {
		return l.identifier(startPos, startCol, startLine)
	}
	if isDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine)
	}
	if ch == '$' && l.cfg.IsFeatureEnabled(config.FeatDollarHex) && isHexDigit(l.peekNext()) {
		l.advance()
		return l.digits(16, startPos, startCol, startLine)
	}

	l.advance()
	switch ch {
	case '\'':
		return l.quoted('\'', token.Quoted, startPos, startCol, startLine)
	case '"':
		return l.quoted('"', token.String, startPos, startCol, startLine)
	case '<', '>':
		if l.match(ch) {
			return l.makeToken(token.Punct, string([]rune{ch, ch}), startPos, startCol, startLine)
		}
		return l.makeToken(token.Punct, string(ch), startPos, startCol, startLine)
	case '+', '-', '*', '/', '%', '&', '|', '^', '~', '(', ')', '[', ']',
		',', '.', ':', '=', '#', '$', '@', '!':
		return l.makeToken(token.Punct, string(ch), startPos, startCol, startLine)
	}
	return l.makeToken(token.Other, string(ch), startPos, startCol, startLine)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

// skipWhitespaceAndComments stops at a newline, which is a token of its own.
func (l *Lexer) skipWhitespaceAndComments() {
	slashes := l.cfg.IsFeatureEnabled(config.FeatSlashComments)
	for {
		switch l.peek() {
		case ' ', '\t', '\r', '\f', '\v':
			l.advance()
		case ';':
			l.lineComment()
		case '/':
			switch {
			case slashes && l.peekNext() == '/':
				l.lineComment()
			case slashes && l.peekNext() == '*':
				l.blockComment()
			default:
				return
			}
		default:
			return
		}
	}
}

// blockComment swallows everything up to the closing */ including newlines.
// An unterminated comment runs to the end of the file.
func (l *Lexer) blockComment() {
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifier(startPos, startCol, startLine int) token.Token {
	for isIdentPart(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.Ident, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	if l.peek() == '0' {
		switch l.peekNext() {
		case 'x', 'X':
			l.advance()
			l.advance()
			return l.digits(16, startPos, startCol, startLine)
		case 'b', 'B':
			l.advance()
			l.advance()
			return l.digits(2, startPos, startCol, startLine)
		}
	}
	return l.digits(10, startPos, startCol, startLine)
}

// digits scans the rest of a number in the given base and normalises its value
// to decimal text. Trailing letters make the whole run invalid.
func (l *Lexer) digits(base int, startPos, startCol, startLine int) token.Token {
	digitsStart := l.pos
	for isIdentPart(l.peek()) {
		l.advance()
	}
	text := string(l.source[digitsStart:l.pos])
	val, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		return l.makeToken(token.Other, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
	}
	return l.makeToken(token.Number, strconv.FormatUint(val, 10), startPos, startCol, startLine)
}

// quoted scans up to the closing quote and keeps the text raw. With C escapes
// enabled a backslash protects the character after it.
func (l *Lexer) quoted(quote rune, tokType token.Type, startPos, startCol, startLine int) token.Token {
	var sb strings.Builder
	escapes := l.cfg.IsFeatureEnabled(config.FeatCEsc)
	for !l.isAtEnd() && l.peek() != '\n' {
		c := l.advance()
		if c == quote {
			return l.makeToken(tokType, sb.String(), startPos, startCol, startLine)
		}
		sb.WriteRune(c)
		if c == '\\' && escapes && !l.isAtEnd() && l.peek() != '\n' {
			sb.WriteRune(l.advance())
		}
	}
	return l.makeToken(token.Other, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func isDigit(c rune) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c rune) bool { return c == '_' || (c < unicode.MaxASCII && unicode.IsLetter(c)) }
func isIdentPart(c rune) bool  { return isIdentStart(c) || isDigit(c) }

func isHexDigit(c rune) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
