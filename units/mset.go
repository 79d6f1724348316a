package units

import (
	"encoding/binary"

	"github.com/imroc/biu"

	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
)

// MSET configures the bank-mapping table: release(vbank) or
// allocate(vbank, rows*cols), single cycle, per spec.md §4.12.
type MSET struct {
	pending  *frontend.Dispatched
	deadline float64
	log      log.Logger
}

// NewMSET builds an MSET unit.
func NewMSET() *MSET {
	return &MSET{deadline: des.Inf, log: log.New("component", "mset")}
}

func (u *MSET) Name() string { return "mset" }

// CanIssue reports whether MSET's single instruction buffer is free.
func (u *MSET) CanIssue() bool { return u.pending == nil }

func (u *MSET) OnExternal(msg des.Message, w *des.World) error {
	d, ok := msg.Payload.(frontend.Dispatched)
	if !ok {
		return common.NewProtocolError("mset: expected Dispatched payload, got %T", msg.Payload)
	}
	if u.pending != nil {
		return common.NewInvalidModelState("mset: dispatch received while buffer occupied")
	}
	u.pending = &d
	u.deadline = 1
	return nil
}

func (u *MSET) OnInternal(w *des.World) ([]des.Message, error) {
	if u.pending == nil {
		u.deadline = des.Inf
		return nil, nil
	}
	instr := u.pending.Instruction
	releaseEn := instr.Xs1&0x1 != 0
	vbank := int((instr.Xs1 >> 1) & 0x1fff)
	allocEn := instr.Xs2&0x1 != 0
	rows := int((instr.Xs2 >> 1) & 0x1f)
	cols := int((instr.Xs2 >> 6) & 0xff)

	var xs2Bytes [8]byte
	binary.BigEndian.PutUint64(xs2Bytes[:], instr.Xs2)
	u.log.Debug("mset bitfields", "xs2", biu.ToBinaryString(xs2Bytes[:]), "release_en", releaseEn, "alloc_en", allocEn)

	var result uint64
	switch {
	case releaseEn:
		w.BMT.Free(vbank)
		result = 1
	case allocEn:
		if _, ok := w.BMT.Allocate(vbank, rows*cols); ok {
			result = 1
		} else {
			u.log.Warn("bmt allocation failed", "vbank", vbank, "k", rows*cols)
			result = 0 // ResourceExhaustion on the MSET path is reported as a boolean, not fatal.
		}
	}

	robID := u.pending.RobID
	u.pending = nil
	u.deadline = des.Inf
	return []des.Message{{
		SourcePort: PortCommit,
		Kind:       des.MsgCommit,
		Payload:    frontend.CommitPayload{RobID: robID, Result: result},
	}}, nil
}

func (u *MSET) TimeAdvance(delta float64) {
	if u.deadline != des.Inf {
		u.deadline -= delta
	}
}

func (u *MSET) UntilNextEvent() float64 { return u.deadline }
