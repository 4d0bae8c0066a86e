package arena

import (
	"errors"
	"testing"

	"github.com/xplshn/gasm/pkg/diag"
)

func TestNewClampsBlockSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, DefaultBlockSize},
		{-5, DefaultBlockSize},
		{10, MinBlockSize},
		{4096, 4096},
	}
	for _, c := range cases {
		if got := New(c.in).BlockSize(); got != c.want {
			t.Errorf("New(%d).BlockSize() = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBlocksAreLazy(t *testing.T) {
	a := New(MinBlockSize)
	if a.First() != nil || a.Blocks() != 0 {
		t.Fatalf("fresh arena has %d blocks", a.Blocks())
	}
	if _, err := a.Alloc(16); err != nil {
		t.Fatal(err)
	}
	if a.Blocks() != 1 {
		t.Errorf("Blocks() = %d after first Alloc, want 1", a.Blocks())
	}
}

func TestBumpLeavesOneByteFree(t *testing.T) {
	a := New(MinBlockSize)
	h, err := a.Alloc(MinBlockSize - 1)
	if err != nil {
		t.Fatal(err)
	}
	if h.Block() != a.First() || h.Offset() != 0 {
		t.Fatalf("first record at %v/%d", h.Block(), h.Offset())
	}
	h2, err := a.Alloc(1)
	if err != nil {
		t.Fatal(err)
	}
	if h2.Block() == a.First() {
		t.Error("a block was filled to capacity")
	}
	if a.Blocks() != 2 {
		t.Errorf("Blocks() = %d, want 2", a.Blocks())
	}
}

func TestAllocFirstFit(t *testing.T) {
	a := New(MinBlockSize)
	mustAlloc(t, a, 400)
	second := mustAlloc(t, a, 200)
	if second.Block() == a.First() {
		t.Fatal("200 bytes should not fit after 400 in a 512 byte block")
	}
	third := mustAlloc(t, a, 100)
	if third.Block() != a.First() || third.Offset() != 400 {
		t.Errorf("100 bytes went to block %p offset %d, want the first block at 400", third.Block(), third.Offset())
	}
}

func TestAllocTooLarge(t *testing.T) {
	a := New(MinBlockSize)
	_, err := a.Alloc(MinBlockSize)
	if !errors.Is(err, diag.ErrRecordTooLarge) {
		t.Fatalf("Alloc of a whole block: err = %v, want record too large", err)
	}
	var de *diag.Error
	if !errors.As(err, &de) || de.Fatal() || de.Subject != "512" {
		t.Errorf("error = %+v", de)
	}
}

func TestMaxBlocks(t *testing.T) {
	a := New(MinBlockSize, WithMaxBlocks(1))
	mustAlloc(t, a, 400)
	_, err := a.Alloc(200)
	if !errors.Is(err, diag.ErrOutOfMemory) {
		t.Fatalf("Alloc past the block limit: err = %v, want out of memory", err)
	}
	var de *diag.Error
	if !errors.As(err, &de) || !de.Fatal() {
		t.Error("out of memory is not fatal")
	}
}

func TestHandleBytesWriteThrough(t *testing.T) {
	a := New(MinBlockSize)
	mustAlloc(t, a, 3)
	h := mustAlloc(t, a, 4)
	copy(h.Bytes(4), "gasm")
	if got := string(a.First().At(h.Offset())); got != "gasm" {
		t.Errorf("At(%d) = %q, want %q", h.Offset(), got, "gasm")
	}
	if !h.Valid() || (Handle{}).Valid() {
		t.Error("Valid() is wrong")
	}
	if got := a.First().Handle(h.Offset()); got != h {
		t.Errorf("Block.Handle = %v, want %v", got, h)
	}
}

func TestRelease(t *testing.T) {
	a := New(MinBlockSize)
	mustAlloc(t, a, 400)
	mustAlloc(t, a, 400)
	a.Release()
	if a.First() != nil || a.Blocks() != 0 {
		t.Error("Release left blocks behind")
	}
	h := mustAlloc(t, a, 8)
	if h.Block() != a.First() || a.Blocks() != 1 {
		t.Error("arena unusable after Release")
	}
}

func mustAlloc(t *testing.T, a *Arena, size int) Handle {
	t.Helper()
	h, err := a.Alloc(size)
	if err != nil {
		t.Fatalf("Alloc(%d): %v", size, err)
	}
	return h
}
