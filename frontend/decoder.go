package frontend

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/log"
)

// PortIn is the decoder's external ingress port, fed raw instructions by
// the host bridge's command handler.
const PortIn des.Port = "in"

// PortOut is the decoder's internal egress port, wired to the ROB.
const PortOut des.Port = "out"

// Decoder classifies an incoming (funct, xs1, xs2) into a domain id and
// pushes it to the ROB, one cycle of latency per instruction, holding and
// retrying while the ROB signals it cannot receive (spec.md §4.3).
type Decoder struct {
	pending  *RawInstruction
	deadline float64
	robReady func() bool
	log      log.Logger
}

// NewDecoder builds a Decoder that consults robReady (the ROB's "ready to
// receive" signal) before dispatching, rather than a package-level global
// (spec.md §9, design notes).
func NewDecoder(robReady func() bool) *Decoder {
	return &Decoder{deadline: des.Inf, robReady: robReady, log: log.New("component", "decoder")}
}

func (d *Decoder) Name() string { return "decoder" }

func (d *Decoder) OnExternal(msg des.Message, w *des.World) error {
	raw, ok := msg.Payload.(RawInstruction)
	if !ok {
		return common.NewProtocolError("decoder: expected RawInstruction payload, got %T", msg.Payload)
	}
	if d.pending != nil {
		return common.NewInvalidModelState("decoder: received instruction while buffer occupied")
	}
	d.pending = &raw
	d.deadline = 1
	return nil
}

func (d *Decoder) OnInternal(w *des.World) ([]des.Message, error) {
	if d.pending == nil {
		d.deadline = des.Inf
		return nil, nil
	}
	if !d.robReady() {
		d.deadline = 1 // hold and retry next cycle
		return nil, nil
	}
	instr := Instruction{Funct: d.pending.Funct, Xs1: d.pending.Xs1, Xs2: d.pending.Xs2, Domain: ClassifyDomain(d.pending.Funct)}
	d.pending = nil
	d.deadline = des.Inf
	return []des.Message{{SourcePort: PortOut, Kind: des.MsgData, Payload: instr}}, nil
}

func (d *Decoder) TimeAdvance(delta float64) {
	if d.deadline != des.Inf {
		d.deadline -= delta
	}
}

func (d *Decoder) UntilNextEvent() float64 { return d.deadline }
