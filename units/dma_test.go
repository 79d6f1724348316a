package units

import "github.com/rvnpu/corenpu/membank"

// fakeDMA is an in-memory stand-in for the host-bridge DMA connection,
// letting unit tests drive loader/storer/vector/systolic without a real
// TCP socket on the other end.
type fakeDMA struct {
	mem    map[uint64]membank.Word128
	writes map[uint64]membank.Word128
}

func newFakeDMA() *fakeDMA {
	return &fakeDMA{mem: make(map[uint64]membank.Word128), writes: make(map[uint64]membank.Word128)}
}

func (f *fakeDMA) ReadWord(addr uint64) membank.Word128 { return f.mem[addr] }

func (f *fakeDMA) WriteWord(addr uint64, w membank.Word128) { f.writes[addr] = w }
