// Package arena implements a pooled bump allocator: a singly linked chain of
// fixed-capacity byte blocks from which variable-length records are carved.
// Records are never moved or freed one at a time; the chain is released as a
// whole.
package arena

import (
	"strconv"

	"github.com/xplshn/gasm/pkg/diag"
)

const DefaultBlockSize = 32768

// MinBlockSize keeps blocks large enough for any symbol record.
const MinBlockSize = 512

type Block struct {
	buf  []byte
	used int
	next *Block
}

// Bump reserves size bytes at the cursor. A reservation must leave at least
// one byte free, so a full block never has used == capacity.
func (b *Block) Bump(size int) (int, bool) {
	if size <= 0 || b.used+size >= len(b.buf) {
		return 0, false
	}
	off := b.used
	b.used += size
	return off, true
}

func (b *Block) Next() *Block  { return b.next }
func (b *Block) Used() int     { return b.used }
func (b *Block) Capacity() int { return len(b.buf) }

// At returns the allocated bytes from off up to the cursor.
func (b *Block) At(off int) []byte { return b.buf[off:b.used] }

// Handle returns the handle of the record starting at off.
func (b *Block) Handle(off int) Handle { return Handle{blk: b, off: off} }

// Handle locates a record: the block that holds it and its offset there.
type Handle struct {
	blk *Block
	off int
}

func (h Handle) Valid() bool        { return h.blk != nil }
func (h Handle) Block() *Block      { return h.blk }
func (h Handle) Offset() int        { return h.off }
func (h Handle) Bytes(n int) []byte { return h.blk.buf[h.off : h.off+n] }

type Arena struct {
	head, tail *Block
	blockSize  int
	maxBlocks  int
	blocks     int
}

type Option func(*Arena)

// WithMaxBlocks limits the chain to n blocks. Going past the limit fails with
// diag.OutOfMemory. Zero means no limit.
func WithMaxBlocks(n int) Option { return func(a *Arena) { a.maxBlocks = n } }

// New creates an empty arena. No block is allocated until the first Alloc.
// A blockSize of zero selects DefaultBlockSize; smaller sizes are raised to
// MinBlockSize.
func New(blockSize int, opts ...Option) *Arena {
	switch {
	case blockSize <= 0:
		blockSize = DefaultBlockSize
	case blockSize < MinBlockSize:
		blockSize = MinBlockSize
	}
	a := &Arena{blockSize: blockSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AllocateBlock appends a fresh block to the chain.
func (a *Arena) AllocateBlock() (*Block, error) {
	if a.maxBlocks > 0 && a.blocks >= a.maxBlocks {
		return nil, diag.New(diag.OutOfMemory, "")
	}
	b := &Block{buf: make([]byte, a.blockSize)}
	if a.tail == nil {
		a.head = b
	} else {
		a.tail.next = b
	}
	a.tail = b
	a.blocks++
	return b, nil
}

// Alloc reserves size bytes in the first block with room, appending a new
// block when none fits.
func (a *Arena) Alloc(size int) (Handle, error) {
	if size >= a.blockSize {
		return Handle{}, diag.New(diag.RecordTooLarge, strconv.Itoa(size))
	}
	if a.head == nil {
		if _, err := a.AllocateBlock(); err != nil {
			return Handle{}, err
		}
	}
	for b := a.head; ; b = b.next {
		if off, ok := b.Bump(size); ok {
			return Handle{blk: b, off: off}, nil
		}
		if b.next == nil {
			if _, err := a.AllocateBlock(); err != nil {
				return Handle{}, err
			}
		}
	}
}

// First returns the head of the chain, or nil before the first allocation.
func (a *Arena) First() *Block { return a.head }

func (a *Arena) Blocks() int    { return a.blocks }
func (a *Arena) BlockSize() int { return a.blockSize }

// Release drops every block.
func (a *Arena) Release() {
	a.head, a.tail, a.blocks = nil, nil, 0
}
