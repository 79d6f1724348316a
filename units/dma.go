package units

import "github.com/rvnpu/corenpu/membank"

// DMAClient is the synchronous host-bridge handle the TDMA loader and
// storer call into from within on_internal, per spec.md §5: DMA is
// invoked synchronously and blocks the kernel until the host responds.
// An interface rather than a concrete bridge dependency keeps units
// testable with a fake DRAM, matching the ROB's ready-flag-as-function
// idiom instead of a package-level global (spec.md §9, design notes).
type DMAClient interface {
	ReadWord(addr uint64) membank.Word128
	WriteWord(addr uint64, w membank.Word128)
}
