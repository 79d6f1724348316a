// Package scoreboard tracks, per physical bank, pending and in-flight
// writes and pending reads, and enforces the rob_id ordering invariants
// that let operations against different banks proceed concurrently while
// same-bank operations serialize.
package scoreboard

import (
	"sort"

	"github.com/rvnpu/corenpu/membank"
)

// WriteEntry is one pending (or, while Reserved, not-yet-filled) write.
type WriteEntry struct {
	RobID    uint64
	Source   string
	Payload  []membank.Word128
	Addr     int
	Reserved bool // true until AddWrite fills in payload/source
}

// ReadEntry is one pending bank read.
type ReadEntry struct {
	RobID  uint64
	Addr   int
	Count  int
	Source string
}

// Board is the scoreboard: three ownership-disjoint, per-pbank structures.
type Board struct {
	pendingWrites map[int][]*WriteEntry
	inFlight      map[int]*WriteEntry
	pendingReads  map[int][]*ReadEntry
}

// New returns an empty scoreboard.
func New() *Board {
	return &Board{
		pendingWrites: make(map[int][]*WriteEntry),
		inFlight:      make(map[int]*WriteEntry),
		pendingReads:  make(map[int][]*ReadEntry),
	}
}

// Check reports whether a request with rob_id r may proceed against pbank:
// true iff no in-flight write and no pending write on pbank has a smaller
// rob_id than r.
func (b *Board) Check(pbank int, r uint64) bool {
	if w, ok := b.inFlight[pbank]; ok && w.RobID < r {
		return false
	}
	for _, w := range b.pendingWrites[pbank] {
		if w.RobID < r {
			return false
		}
	}
	return true
}

// ReserveWrite inserts a placeholder pending write at rob_id r so readers
// issued with a larger rob_id observe the dependency immediately, even
// before the write's payload is known.
func (b *Board) ReserveWrite(r uint64, pbank int) {
	b.insertWrite(pbank, &WriteEntry{RobID: r, Reserved: true})
}

// AddWrite fills in the reserved placeholder at rob_id r on pbank if one
// exists, or else appends a new pending write, keeping the list sorted.
func (b *Board) AddWrite(r uint64, pbank int, source string, payload []membank.Word128, addr int) {
	for _, w := range b.pendingWrites[pbank] {
		if w.RobID == r && w.Reserved {
			w.Source = source
			w.Payload = payload
			w.Addr = addr
			w.Reserved = false
			return
		}
	}
	b.insertWrite(pbank, &WriteEntry{RobID: r, Source: source, Payload: payload, Addr: addr})
}

func (b *Board) insertWrite(pbank int, w *WriteEntry) {
	list := b.pendingWrites[pbank]
	list = append(list, w)
	sort.Slice(list, func(i, j int) bool { return list[i].RobID < list[j].RobID })
	b.pendingWrites[pbank] = list
}

// AddRead appends a pending read for pbank, keeping the per-pbank list
// sorted by rob_id.
func (b *Board) AddRead(r uint64, pbank, addr, count int, source string) {
	list := append(b.pendingReads[pbank], &ReadEntry{RobID: r, Addr: addr, Count: count, Source: source})
	sort.Slice(list, func(i, j int) bool { return list[i].RobID < list[j].RobID })
	b.pendingReads[pbank] = list
}

// MarkInFlight records w as the single in-flight write for pbank. Callers
// must ensure at most one write is in flight per pbank at a time.
func (b *Board) MarkInFlight(pbank int, w *WriteEntry) {
	b.inFlight[pbank] = w
}

// MarkCompleted clears the in-flight write on pbank.
func (b *Board) MarkCompleted(pbank int) {
	delete(b.inFlight, pbank)
}

// OneReadyWrite returns the globally-smallest-rob_id pending write among
// pbanks with no in-flight write, removing it from the pending list. Ties
// on rob_id (which should not occur with globally unique ids) break by
// the smaller pbank id.
func (b *Board) OneReadyWrite() (*WriteEntry, int, bool) {
	bestPbank := -1
	var best *WriteEntry
	for pbank, list := range b.pendingWrites {
		if len(list) == 0 {
			continue
		}
		if _, busy := b.inFlight[pbank]; busy {
			continue
		}
		head := list[0]
		if head.Reserved {
			// Payload not yet known; this pbank isn't ready.
			continue
		}
		if best == nil || head.RobID < best.RobID || (head.RobID == best.RobID && pbank < bestPbank) {
			best, bestPbank = head, pbank
		}
	}
	if best == nil {
		return nil, 0, false
	}
	list := b.pendingWrites[bestPbank]
	b.pendingWrites[bestPbank] = list[1:]
	return best, bestPbank, true
}

// OneReadyRead returns the globally-smallest-rob_id pending read among
// pbanks with no in-flight write, removing it from the pending list. A
// read whose pbank still holds a pending (or reserved) write with a
// smaller rob_id is not ready.
func (b *Board) OneReadyRead() (*ReadEntry, int, bool) {
	bestPbank := -1
	var best *ReadEntry
	for pbank, list := range b.pendingReads {
		if len(list) == 0 {
			continue
		}
		if _, busy := b.inFlight[pbank]; busy {
			continue
		}
		head := list[0]
		if !b.Check(pbank, head.RobID) {
			continue
		}
		if best == nil || head.RobID < best.RobID || (head.RobID == best.RobID && pbank < bestPbank) {
			best, bestPbank = head, pbank
		}
	}
	if best == nil {
		return nil, 0, false
	}
	list := b.pendingReads[bestPbank]
	b.pendingReads[bestPbank] = list[1:]
	return best, bestPbank, true
}

// DebugDrainReadyWrites eagerly drains every ready write across all banks.
// It exists for debugging/tests only; production code issues one write
// per cycle via OneReadyWrite so the memory controller's per-cycle issue
// rate is honored (see SPEC_FULL.md §6).
func (b *Board) DebugDrainReadyWrites() []*WriteEntry {
	var out []*WriteEntry
	for {
		w, _, ok := b.OneReadyWrite()
		if !ok {
			break
		}
		out = append(out, w)
	}
	return out
}

// DebugDrainReadyReads is the read-side analog of DebugDrainReadyWrites.
func (b *Board) DebugDrainReadyReads() []*ReadEntry {
	var out []*ReadEntry
	for {
		r, _, ok := b.OneReadyRead()
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}
