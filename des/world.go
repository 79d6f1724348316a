package des

import (
	"github.com/rvnpu/corenpu/bmt"
	"github.com/rvnpu/corenpu/membank"
	"github.com/rvnpu/corenpu/scoreboard"
)

// World bundles the process-wide resources the kernel lends to every
// model's event handlers: the bank array, the bank-mapping table, and the
// scoreboard. Models never own these directly, only their own private
// state; the DES kernel owns World and mutation is safe because only the
// single kernel thread ever touches it (see SPEC_FULL.md §4.13, §5).
type World struct {
	Banks      *membank.Array
	BMT        *bmt.Table
	Scoreboard *scoreboard.Board
}

// NewWorld constructs a World with n physical banks of the given depth.
func NewWorld(n, depth int) *World {
	return &World{
		Banks:      membank.NewArray(n, depth),
		BMT:        bmt.New(n),
		Scoreboard: scoreboard.New(),
	}
}
