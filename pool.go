package collisiongrid

import (
	"fmt"
	"unsafe"
)

// Holdable is implemented by pool elements. The pool never hands out an
// element whose CanAcquire is false and never takes back one whose
// CanRelease is false.
type Holdable interface {
	CanAcquire() bool
	CanRelease() bool
	SetAcquired(bool)
}

// Destroyer is called on release when the pool has DestroyOnRelease.
type Destroyer interface {
	Destroy()
}

type holdablePtr[T any] interface {
	*T
	Holdable
}

type PoolFlags uint8

const (
	DestroyOnRelease PoolFlags = 1 << iota
	ZeroOnRelease
)

type poolBlock[T any] struct {
	elements  []T
	available []int32
	free      int
}

func newPoolBlock[T any](size int) *poolBlock[T] {
	b := &poolBlock[T]{
		elements:  make([]T, size),
		available: make([]int32, size),
		free:      size,
	}
	// Descending so the first pop hands out slot 0.
	for i := range b.available {
		b.available[i] = int32(size - 1 - i)
	}
	return b
}

func (b *poolBlock[T]) localIndex(e *T) int {
	size := unsafe.Sizeof(b.elements[0])
	if size == 0 {
		return -1
	}
	base := uintptr(unsafe.Pointer(&b.elements[0]))
	p := uintptr(unsafe.Pointer(e))
	if p < base || p >= base+size*uintptr(len(b.elements)) {
		return -1
	}
	return int((p - base) / size)
}

// ElementPool hands out stable pointers from a chain of fixed size blocks.
// Blocks are never reallocated, so a pointer stays valid until the element
// is released. Every element has a global index: block number times block
// size plus its slot in the block.
type ElementPool[T any, PT holdablePtr[T]] struct {
	name      string
	blockSize int
	maxBlocks int
	flags     PoolFlags
	blocks    []*poolBlock[T]
	inUse     int
}

// NewElementPool allocates the first block. maxBlocks of 0 lets the chain
// grow without limit.
func NewElementPool[T any, PT holdablePtr[T]](name string, blockSize, maxBlocks int, flags PoolFlags) *ElementPool[T, PT] {
	if blockSize <= 0 {
		panic(fmt.Sprintf("collisiongrid: pool %s: block size %d", name, blockSize))
	}
	p := &ElementPool[T, PT]{
		name:      name,
		blockSize: blockSize,
		maxBlocks: maxBlocks,
		flags:     flags,
	}
	p.grow()
	return p
}

func (p *ElementPool[T, PT]) grow() {
	p.blocks = append(p.blocks, newPoolBlock[T](p.blockSize))
	log.Debugf("Allocated element block %d for %s with %d entries", len(p.blocks), p.name, p.blockSize)
}

// Acquire returns the first free element in the chain and its global index.
// A new block is appended only when every block is full.
func (p *ElementPool[T, PT]) Acquire() (PT, int32, error) {
	for n := 0; ; n++ {
		if n == len(p.blocks) {
			if p.maxBlocks > 0 && n >= p.maxBlocks {
				log.Errorf("Pool %s exhausted at %d blocks", p.name, n)
				return nil, -1, fmt.Errorf("%s: %d blocks of %d: %w", p.name, n, p.blockSize, ErrPoolExhausted)
			}
			p.grow()
		}
		b := p.blocks[n]
		if b.free == 0 {
			continue
		}
		b.free--
		local := b.available[b.free]
		e := PT(&b.elements[local])
		assertf(e.CanAcquire(), "pool %s handed out a busy slot %d:%d", p.name, n, local)
		e.SetAcquired(true)
		p.inUse++
		return e, int32(n*p.blockSize) + local, nil
	}
}

// Release returns e to its block. It reports false when e is not owned by
// this pool or refuses release.
func (p *ElementPool[T, PT]) Release(e PT) bool {
	if e == nil || !e.CanRelease() {
		return false
	}
	for _, b := range p.blocks {
		i := b.localIndex((*T)(e))
		if i < 0 {
			continue
		}
		if p.flags&DestroyOnRelease != 0 {
			if d, ok := any(e).(Destroyer); ok {
				d.Destroy()
			}
		}
		if p.flags&ZeroOnRelease != 0 {
			var zero T
			b.elements[i] = zero
		}
		e.SetAcquired(false)
		b.available[b.free] = int32(i)
		b.free++
		p.inUse--
		return true
	}
	return false
}

// GetLocalIndex returns the block number and slot of e, or -1, -1.
func (p *ElementPool[T, PT]) GetLocalIndex(e PT) (block, local int) {
	for n, b := range p.blocks {
		if i := b.localIndex((*T)(e)); i >= 0 {
			return n, i
		}
	}
	return -1, -1
}

// GetGlobalIndex returns the global index of e, or -1.
func (p *ElementPool[T, PT]) GetGlobalIndex(e PT) int32 {
	n, i := p.GetLocalIndex(e)
	if n < 0 {
		return -1
	}
	return int32(n*p.blockSize + i)
}

// GetIndexedElement returns the element at a global index, or nil. The
// element may be free.
func (p *ElementPool[T, PT]) GetIndexedElement(global int32) PT {
	if global < 0 {
		return nil
	}
	n := int(global) / p.blockSize
	if n >= len(p.blocks) {
		return nil
	}
	return PT(&p.blocks[n].elements[int(global)%p.blockSize])
}

// Len is the number of acquired elements.
func (p *ElementPool[T, PT]) Len() int { return p.inUse }

// Cap is the number of slots across all blocks.
func (p *ElementPool[T, PT]) Cap() int { return len(p.blocks) * p.blockSize }

func (p *ElementPool[T, PT]) Blocks() int { return len(p.blocks) }

// Exit drops every block. Pointers handed out earlier must not be used
// afterwards.
func (p *ElementPool[T, PT]) Exit() {
	p.blocks = nil
	p.inUse = 0
}
