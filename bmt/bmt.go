// Package bmt implements the bank-mapping table: the allocator from
// programmer-visible virtual bank ids to physical bank ids.
package bmt

import (
	mapset "github.com/deckarep/golang-set"
)

// Table holds the vbank -> []pbank mapping, its inverse, and a FIFO free
// list. Free and allocated pbanks partition [0, N).
type Table struct {
	n        int
	free     []int         // FIFO of unallocated pbanks
	alloc    map[int][]int // vbank -> ordered pbanks
	inverse  map[int]int   // pbank -> vbank
	mapped   mapset.Set    // set of vbanks currently mapped, mirrors alloc's keys
}

// New creates a table over N physical banks, all initially free.
func New(n int) *Table {
	free := make([]int, n)
	for i := range free {
		free[i] = i
	}
	return &Table{
		n:       n,
		free:    free,
		alloc:   make(map[int][]int),
		inverse: make(map[int]int),
		mapped:  mapset.NewSet(),
	}
}

// Allocate maps vbank to k fresh physical banks taken FIFO from the free
// list. It returns (pbanks, true) on success, or (nil, false) if vbank is
// already mapped or fewer than k banks are free ("not mapped").
func (t *Table) Allocate(vbank, k int) ([]int, bool) {
	if t.mapped.Contains(vbank) {
		return nil, false
	}
	if len(t.free) < k {
		return nil, false
	}
	pbanks := append([]int(nil), t.free[:k]...)
	t.free = t.free[k:]
	t.alloc[vbank] = pbanks
	t.mapped.Add(vbank)
	for _, p := range pbanks {
		t.inverse[p] = vbank
	}
	return pbanks, true
}

// Free releases vbank's mapped pbanks back to the tail of the free list,
// in the order they were originally allocated, and removes the mapping.
// Freeing an unmapped vbank is a no-op, making Free idempotent.
func (t *Table) Free(vbank int) {
	pbanks, ok := t.alloc[vbank]
	if !ok {
		return
	}
	delete(t.alloc, vbank)
	t.mapped.Remove(vbank)
	for _, p := range pbanks {
		delete(t.inverse, p)
	}
	t.free = append(t.free, pbanks...)
}

// Pbanks returns the physical banks mapped to vbank, and whether vbank is
// mapped at all.
func (t *Table) Pbanks(vbank int) ([]int, bool) {
	pbanks, ok := t.alloc[vbank]
	return pbanks, ok
}

// VbankOf returns the virtual bank mapped to pbank, and whether pbank is
// currently allocated.
func (t *Table) VbankOf(pbank int) (int, bool) {
	v, ok := t.inverse[pbank]
	return v, ok
}

// FreeCount returns the number of unallocated physical banks.
func (t *Table) FreeCount() int { return len(t.free) }

// AllocCount returns the total number of physical banks currently mapped
// to some vbank, i.e. Σ|alloc(v)|.
func (t *Table) AllocCount() int {
	sum := 0
	for _, p := range t.alloc {
		sum += len(p)
	}
	return sum
}

// Invariant reports whether |free| + Σ|alloc(v)| == N still holds.
func (t *Table) Invariant() bool { return t.FreeCount()+t.AllocCount() == t.n }
