package symbols

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Record layout inside an arena block:
//
//	0  uint8   name length including the terminating zero
//	1  uint8   flags
//	2  uint16  scope
//	4  uint32  address
//	8  uint64  xxhash of the name
//	16 name bytes, then a zero byte
const headerSize = 16

// maxNameLen bounds the stored name including its terminator.
const maxNameLen = 255

const (
	flagWritable = 1 << 0
	flagExported = 1 << 1
)

// record is a view over one encoded symbol inside an arena block. Writes go
// straight to the block.
type record []byte

func (r record) nameLen() int    { return int(r[0]) }
func (r record) size() int       { return headerSize + r.nameLen() }
func (r record) flags() byte     { return r[1] }
func (r record) scope() uint16   { return binary.LittleEndian.Uint16(r[2:]) }
func (r record) address() uint32 { return binary.LittleEndian.Uint32(r[4:]) }
func (r record) hash() uint64    { return binary.LittleEndian.Uint64(r[8:]) }
func (r record) name() string    { return string(r[headerSize : headerSize+r.nameLen()-1]) }
func (r record) writable() bool  { return r.flags()&flagWritable != 0 }
func (r record) exported() bool  { return r.flags()&flagExported != 0 }
func (r record) setFlag(f byte)  { r[1] |= f }

func (r record) setAddress(addr uint32) { binary.LittleEndian.PutUint32(r[4:], addr) }

func (r record) matches(name string, sum uint64) bool {
	return r.hash() == sum && r.nameLen() == len(name)+1 && string(r[headerSize:headerSize+len(name)]) == name
}

func (r record) symbol() Symbol {
	return Symbol{
		Name:     r.name(),
		Address:  r.address(),
		Scope:    r.scope(),
		Writable: r.writable(),
		Exported: r.exported(),
	}
}

// encode writes a complete record into buf, which must be exactly
// headerSize+len(name)+1 bytes long.
func encode(buf []byte, name string, addr uint32, scope uint16, flags byte) record {
	buf[0] = byte(len(name) + 1)
	buf[1] = flags
	binary.LittleEndian.PutUint16(buf[2:], scope)
	binary.LittleEndian.PutUint32(buf[4:], addr)
	binary.LittleEndian.PutUint64(buf[8:], xxhash.Sum64String(name))
	copy(buf[headerSize:], name)
	buf[len(buf)-1] = 0
	return record(buf)
}
