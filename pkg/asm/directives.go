package asm

import (
	"encoding/binary"
	"strings"

	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
	"github.com/xplshn/gasm/pkg/lexer"
	"github.com/xplshn/gasm/pkg/token"
)

func (a *Assembler) directive(name token.Token) error {
	switch strings.ToLower(name.Value) {
	case "equ":
		return a.namedAssign(false)
	case "set":
		return a.namedAssign(true)
	case "scope":
		if err := a.table.ScopeStart(); err != nil {
			if err := a.report(err, name); err != nil {
				return err
			}
		} else {
			a.scopeTok = name
		}
		return a.endLine()
	case "ends":
		if !a.table.InScope() && a.pass == 2 {
			a.rep.Warn(config.WarnExtra, name, ".ends without a matching .scope")
		}
		a.table.ScopeEnd()
		return a.endLine()
	case "export":
		return a.export()
	case "org":
		v, err := a.eval.Evaluate(a.src)
		if err != nil {
			a.skipLine()
			return a.report(err, name)
		}
		a.address = uint32(v)
		return a.endLine()
	case "db":
		return a.data(1)
	case "dw":
		return a.data(2)
	case "dl":
		return a.data(4)
	case "ascii":
		return a.ascii()
	}
	if a.pass == 2 {
		a.rep.Errorf(name, "Unknown directive '.%s'.", name.Value)
	}
	a.skipLine()
	return nil
}

// namedAssign handles ".equ name, expr" and ".set name, expr".
func (a *Assembler) namedAssign(variable bool) error {
	name := a.src.raw()
	if name.Type != token.Ident {
		return a.unexpected(name)
	}
	if comma := a.src.raw(); !comma.Is(",") {
		return a.unexpected(comma)
	}
	return a.assign(name, variable)
}

// abandon reports err at tok and drops the rest of the line.
func (a *Assembler) abandon(err error, tok token.Token) error {
	err = a.report(err, tok)
	a.skipLine()
	return err
}

func (a *Assembler) unexpected(tok token.Token) error {
	if tok.Type == token.EOL || tok.Type == token.EOF {
		a.src.PushBack(tok)
	}
	err := a.report(diag.New(diag.UnexpectedToken, tok.Text()), tok)
	a.skipLine()
	return err
}

// export marks each listed name. Forward labels are only known once pass 1 is
// over, so the work happens in pass 2.
func (a *Assembler) export() error {
	for {
		name := a.src.raw()
		if name.Type != token.Ident {
			return a.unexpected(name)
		}
		if a.pass == 2 {
			if err := a.table.Export(name.Value); err != nil {
				if err := a.report(err, name); err != nil {
					return err
				}
			}
		}
		sep := a.src.raw()
		if !sep.Is(",") {
			a.src.PushBack(sep)
			return a.endLine()
		}
	}
}

// data emits comma-separated values of the given byte width. A value that
// fails still takes its room so that pass 1 lays out the same addresses as
// pass 2. .db also accepts strings.
func (a *Assembler) data(width int) error {
	for {
		tok := a.src.raw()
		if tok.Type == token.String && width == 1 {
			data, err := a.stringBytes(tok)
			if err != nil {
				return err
			}
			if err := a.emit(data); err != nil {
				return a.abandon(err, tok)
			}
		} else {
			a.src.PushBack(tok)
			v, err := a.eval.Evaluate(a.src)
			if err != nil {
				if err := a.report(err, tok); err != nil {
					return err
				}
				if err := a.emit(make([]byte, width)); err != nil {
					return a.abandon(err, tok)
				}
				if !a.skipOperand() {
					return nil
				}
				continue
			}
			if a.pass == 2 && !fits(v, width) {
				a.rep.Warn(config.WarnOverflow, tok, "value %d does not fit in %d bit(s)", v, width*8)
			}
			if err := a.emit(encodeValue(v, width)); err != nil {
				return a.abandon(err, tok)
			}
		}

		sep := a.src.raw()
		if sep.Is(",") {
			continue
		}
		a.src.PushBack(sep)
		return a.endLine()
	}
}

// skipOperand drops tokens up to the next comma. It reports whether more
// operands follow on the line.
func (a *Assembler) skipOperand() bool {
	for {
		tok := a.src.raw()
		switch {
		case tok.Is(","):
			return true
		case tok.Type == token.EOL:
			return false
		case tok.Type == token.EOF:
			a.src.PushBack(tok)
			return false
		}
	}
}

func (a *Assembler) ascii() error {
	tok := a.src.raw()
	if tok.Type != token.String {
		return a.unexpected(tok)
	}
	data, err := a.stringBytes(tok)
	if err != nil {
		return err
	}
	if err := a.emit(data); err != nil {
		return a.abandon(err, tok)
	}
	return a.endLine()
}

// stringBytes decodes a string literal. A bad escape is reported and yields
// no bytes.
func (a *Assembler) stringBytes(tok token.Token) ([]byte, error) {
	if !a.cfg.IsFeatureEnabled(config.FeatCEsc) {
		return []byte(tok.Value), nil
	}
	data, err := lexer.DecodeString(tok.Value)
	if err != nil {
		return nil, a.report(err, tok)
	}
	return data, nil
}

// fits reports whether v survives truncation to width bytes, read either as
// signed or unsigned.
func fits(v int64, width int) bool {
	bits := uint(width * 8)
	if bits >= 64 {
		return true
	}
	return v >= -(1<<(bits-1)) && v < 1<<bits
}

func encodeValue(v int64, width int) []byte {
	switch width {
	case 1:
		return []byte{byte(v)}
	case 2:
		return binary.LittleEndian.AppendUint16(nil, uint16(v))
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}
