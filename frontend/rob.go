package frontend

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/log"
)

// PortDispatch is the ROB's egress port carrying dispatched instructions
// to the reservation station.
const PortDispatch des.Port = "dispatch"

// PortRetire is the ROB's egress port carrying retired results to the
// host bridge.
const PortRetire des.Port = "retire"

type robEntry struct {
	RobID      uint64
	Instr      Instruction
	Dispatched bool
	Committed  bool
	Result     uint64
}

// ROB is the reorder buffer: a bounded ring of capacity C enforcing
// in-order dispatch and in-order, head-only commit (spec.md §4.4).
type ROB struct {
	capacity  int
	entries   []robEntry
	nextRobID uint64
	rsReady   func() bool
	log       log.Logger
}

// NewROB builds a ROB of the given capacity. rsReady reports whether the
// reservation station's single instruction buffer is free to accept the
// next dispatch.
func NewROB(capacity int, rsReady func() bool) *ROB {
	return &ROB{capacity: capacity, rsReady: rsReady, log: log.New("component", "rob")}
}

func (r *ROB) Name() string { return "rob" }

// Ready reports whether the ROB can accept another instruction; the
// decoder polls this as its backpressure signal (spec.md §4.3).
func (r *ROB) Ready() bool { return len(r.entries) < r.capacity }

func (r *ROB) OnExternal(msg des.Message, w *des.World) error {
	switch msg.Kind {
	case des.MsgData:
		instr, ok := msg.Payload.(Instruction)
		if !ok {
			return common.NewProtocolError("rob: expected Instruction payload, got %T", msg.Payload)
		}
		if !r.Ready() {
			return common.NewResourceExhaustion("rob: overflow at capacity %d", r.capacity)
		}
		id := r.nextRobID
		r.nextRobID++
		r.entries = append(r.entries, robEntry{RobID: id, Instr: instr})
		return nil
	case des.MsgCommit:
		cp, ok := msg.Payload.(CommitPayload)
		if !ok {
			return common.NewProtocolError("rob: expected CommitPayload, got %T", msg.Payload)
		}
		for i := range r.entries {
			if r.entries[i].RobID == cp.RobID {
				r.entries[i].Committed = true
				r.entries[i].Result = cp.Result
				return nil
			}
		}
		// Commit for an id the ROB no longer tracks is ignored, per
		// spec.md §4.4's "idempotent" discretion.
		r.log.Warn("commit for unknown rob_id", "rob_id", cp.RobID, "err", common.ErrROBNotPresent)
		return nil
	default:
		return common.NewProtocolError("rob: unexpected message kind %d", msg.Kind)
	}
}

func (r *ROB) OnInternal(w *des.World) ([]des.Message, error) {
	var out []des.Message

	for i := range r.entries {
		if r.entries[i].Dispatched {
			continue
		}
		if !r.rsReady() {
			break
		}
		r.entries[i].Dispatched = true
		out = append(out, des.Message{
			SourcePort: PortDispatch,
			Kind:       des.MsgData,
			Payload:    Dispatched{RobID: r.entries[i].RobID, Instruction: r.entries[i].Instr},
		})
		break // at most one rob_id dispatched per cycle
	}

	for len(r.entries) > 0 && r.entries[0].Committed {
		head := r.entries[0]
		r.entries = r.entries[1:]
		out = append(out, des.Message{
			SourcePort: PortRetire,
			Kind:       des.MsgData,
			Payload:    Retired{RobID: head.RobID, Result: head.Result},
		})
	}
	return out, nil
}

func (r *ROB) TimeAdvance(delta float64) {}

func (r *ROB) UntilNextEvent() float64 { return 1 }
