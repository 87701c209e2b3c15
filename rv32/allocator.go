package rv32

import "slices"

// allocAlign is the alignment every allocated block is rounded up to.
const allocAlign = 8

// pageSize is the unit Sbrk grows the break by when no free block fits a
// request.
const pageSize = 4096

// splitThreshold is the minimum remainder size worth splitting off as a
// new free block; smaller remainders are left attached to the block that
// was just allocated (bounded internal fragmentation).
const splitThreshold = 8

// block describes one first-fit free-list entry covering
// [start, start+size) of the address space above BreakBase. The
// allocator keeps blocks sorted by start and contiguous over
// [breakBase, brk), with no two adjacent free blocks (coalescing is
// eager), matching spec.md §3's invariants.
type block struct {
	start uint32
	size  uint32
	free  bool
}

func alignUp(n uint32, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// Malloc returns the start address of a first-fit block of at least
// nbytes, rounded up to an 8-byte alignment. malloc(0) returns 0 without
// touching the free list. If no free block is large enough, the break is
// grown by max(need, pageSize) and the request is retried exactly once.
// Because the break is clamped at Size(), that retry can still find no
// fitting block; Malloc then returns 0.
func (a *AddressSpace) Malloc(nbytes uint32) uint32 {
	if nbytes == 0 {
		return 0
	}
	need := alignUp(nbytes, allocAlign)

	if ptr, ok := a.firstFit(need); ok {
		return ptr
	}

	grow := need
	if grow < pageSize {
		grow = pageSize
	}
	a.growHeap(grow)

	ptr, ok := a.firstFit(need)
	if !ok {
		// The break hit Size() before a block of need bytes was free.
		return 0
	}
	return ptr
}

// firstFit scans the block list in order for the first free block of at
// least need bytes, splitting off a trailing free remainder when it is
// large enough to be worth keeping separate.
func (a *AddressSpace) firstFit(need uint32) (uint32, bool) {
	for i := range a.blocks {
		b := &a.blocks[i]
		if !b.free || b.size < need {
			continue
		}
		remainder := b.size - need
		start := b.start
		if remainder >= splitThreshold {
			newBlock := block{start: b.start + need, size: remainder, free: true}
			b.size = need
			b.free = false
			a.blocks = slices.Insert(a.blocks, i+1, newBlock)
		} else {
			b.free = false
		}
		return start, true
	}
	return 0, false
}

// growHeap moves the break up by n bytes (clamped like any Sbrk call)
// and appends a free block covering the newly available region. If the
// break could not actually move (already at Size()), no block is added.
func (a *AddressSpace) growHeap(n uint32) {
	old := a.Sbrk(int32(n))
	grown := a.brk - old
	if grown == 0 {
		return
	}
	if len(a.blocks) > 0 {
		last := &a.blocks[len(a.blocks)-1]
		if last.free && last.start+last.size == old {
			last.size += grown
			return
		}
	}
	a.blocks = append(a.blocks, block{start: old, size: grown, free: true})
}

// Free releases the block starting at exactly ptr. Pointers that are not
// a block's start (including anything outside [breakBase, brk)) are
// silently ignored, matching spec.md §4.2's "no double-free detection
// beyond ignore if not a block start". Freed blocks are eagerly
// coalesced with both neighbors.
func (a *AddressSpace) Free(ptr uint32) {
	if ptr == 0 {
		return
	}
	idx := -1
	for i := range a.blocks {
		if a.blocks[i].start == ptr {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	a.blocks[idx].free = true

	if idx+1 < len(a.blocks) && a.blocks[idx+1].free {
		a.blocks[idx].size += a.blocks[idx+1].size
		a.blocks = slices.Delete(a.blocks, idx+1, idx+2)
	}
	if idx > 0 && a.blocks[idx-1].free {
		a.blocks[idx-1].size += a.blocks[idx].size
		a.blocks = slices.Delete(a.blocks, idx, idx+1)
	}
}
