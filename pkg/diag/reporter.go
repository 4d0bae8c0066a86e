package diag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/token"
)

// SourceFile tracks the name and content of a single source file.
type SourceFile struct {
	Name    string
	Content []rune
}

// Reporter prints diagnostics attributed to file and line and keeps count of
// them. Unlike a fatal error helper it never exits: the driver keeps going to
// surface as many problems as possible in one run.
type Reporter struct {
	out      io.Writer
	cfg      *config.Config
	files    []SourceFile
	color    bool
	errors   int
	warnings int
}

func NewReporter(out io.Writer, cfg *config.Config) *Reporter {
	r := &Reporter{out: out, cfg: cfg}
	if f, ok := out.(*os.File); ok {
		r.color = term.IsTerminal(int(f.Fd()))
	}
	return r
}

// SetSourceFiles stores the source of every input file for caret lines.
func (r *Reporter) SetSourceFiles(files []SourceFile) { r.files = files }

func (r *Reporter) FileName(index int) string {
	if index < 0 || index >= len(r.files) {
		return "unknown"
	}
	return r.files[index].Name
}

// Pos converts a token location to a Pos.
func (r *Reporter) Pos(tok token.Token) Pos {
	return Pos{File: r.FileName(tok.FileIndex), Line: tok.Line, Column: tok.Column}
}

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (r *Reporter) printSourceLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.files) || tok.Line == 0 || tok.Column == 0 {
		return
	}
	content := r.files[tok.FileIndex].Content
	lineStart, line := 0, 1
	for i, ch := range content {
		if line == tok.Line {
			break
		}
		if ch == '\n' {
			line++
			lineStart = i + 1
		}
	}
	if line != tok.Line {
		return
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(r.out, "  %s\n", string(content[lineStart:lineEnd]))
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(r.out, "  %s%s\n", strings.Repeat(" ", tok.Column-1), r.paint("32", caret))
}

// Errorf reports an error at tok.
func (r *Reporter) Errorf(tok token.Token, format string, args ...any) {
	r.errors++
	fmt.Fprintf(r.out, "%s: %s ", r.Pos(tok), r.paint("31", "error:"))
	fmt.Fprintf(r.out, format, args...)
	fmt.Fprintln(r.out)
	r.printSourceLine(tok)
}

// Warn reports a warning at tok if wt is enabled.
func (r *Reporter) Warn(wt config.Warning, tok token.Token, format string, args ...any) {
	if r.cfg != nil && !r.cfg.IsWarningEnabled(wt) {
		return
	}
	r.warnings++
	fmt.Fprintf(r.out, "%s: %s ", r.Pos(tok), r.paint("33", "warning:"))
	fmt.Fprintf(r.out, format, args...)
	if r.cfg != nil {
		fmt.Fprintf(r.out, " [-W%s]", r.cfg.Warnings[wt].Name)
	}
	fmt.Fprintln(r.out)
	r.printSourceLine(tok)
}

// Report prints err at tok. Quiet errors are dropped. It returns true when
// the error is fatal and the run must stop.
func (r *Reporter) Report(err error, tok token.Token) bool {
	var de *Error
	if !errors.As(err, &de) {
		r.Errorf(tok, "%v", err)
		return false
	}
	if de.Quiet() {
		return false
	}
	if de.Pos.Line != 0 && de.Pos.Line != tok.Line {
		r.errors++
		fmt.Fprintf(r.out, "%s: %s %s\n", de.Pos, r.paint("31", "error:"), de.Message())
		return de.Fatal()
	}
	r.Errorf(tok, "%s", de.Message())
	return de.Fatal()
}

func (r *Reporter) Failed() bool  { return r.errors > 0 }
func (r *Reporter) Errors() int   { return r.errors }
func (r *Reporter) Warnings() int { return r.warnings }
