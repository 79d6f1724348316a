package units

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/membank"
	"github.com/rvnpu/corenpu/memctrl"
)

// PortStorerRead is the storer's egress port to the memory controller.
const PortStorerRead des.Port = "read"

type storerState int

const (
	storerIdle storerState = iota
	storerIssueRead
	storerWaitRead
	storerActive
)

type storerJob struct {
	robID    uint64
	dramAddr uint64
	vbank    int
	depth    int
	stride   int

	segsRemaining int
	data          []membank.Word128
}

// TDMAStorer executes MVOUT: vbank -> DRAM, via the memory controller's
// read path and the host bridge's DMA-write path (spec.md §4.9).
type TDMAStorer struct {
	state          storerState
	job            *storerJob
	deadline       float64
	dma            DMAClient
	latencyPerWord float64
	log            log.Logger
}

// NewTDMAStorer builds a storer that writes to dma and charges
// latencyPerWord cycles per transferred word during its Active phase.
func NewTDMAStorer(dma DMAClient, latencyPerWord float64) *TDMAStorer {
	return &TDMAStorer{state: storerIdle, deadline: des.Inf, dma: dma, latencyPerWord: latencyPerWord, log: log.New("component", "tdma_storer")}
}

func (u *TDMAStorer) Name() string { return "tdma_storer" }

// CanIssue reports whether the storer is idle and can accept a new MVOUT.
func (u *TDMAStorer) CanIssue() bool { return u.state == storerIdle }

func (u *TDMAStorer) OnExternal(msg des.Message, w *des.World) error {
	if msg.TargetPort == memctrl.PortReadResp {
		if u.state != storerWaitRead {
			return common.NewInvalidModelState("tdma_storer: unexpected read response")
		}
		resp, ok := msg.Payload.(memctrl.ReadResponse)
		if !ok {
			return common.NewProtocolError("tdma_storer: expected ReadResponse payload, got %T", msg.Payload)
		}
		u.job.data = append(u.job.data, resp.Data...)
		u.job.segsRemaining--
		if u.job.segsRemaining > 0 {
			return nil // more segments still in flight; stay in storerWaitRead
		}
		for i, w128 := range u.job.data {
			addr := u.job.dramAddr + uint64(i*16*u.job.stride)
			u.dma.WriteWord(addr, w128)
		}
		u.state = storerActive
		u.deadline = u.latencyPerWord * float64(len(u.job.data))
		if u.deadline <= 0 {
			u.deadline = 1
		}
		return nil
	}

	d, ok := msg.Payload.(frontend.Dispatched)
	if !ok {
		return common.NewProtocolError("tdma_storer: expected Dispatched payload, got %T", msg.Payload)
	}
	if u.state != storerIdle {
		return common.NewInvalidModelState("tdma_storer: dispatch received while busy")
	}
	instr := d.Instruction
	stride := int((instr.Xs2 >> 15) & 0x7ffff)
	if stride == 0 {
		stride = 1
	}
	u.job = &storerJob{
		robID:    d.RobID,
		dramAddr: instr.Xs1,
		vbank:    int(instr.Xs2 & 0x1f),
		depth:    int((instr.Xs2 >> 5) & 0x3ff),
		stride:   stride,
	}
	u.state = storerIssueRead
	u.deadline = 1
	return nil
}

func (u *TDMAStorer) OnInternal(w *des.World) ([]des.Message, error) {
	switch u.state {
	case storerIssueRead:
		j := u.job
		bankDepth := w.Banks.Depth()
		segs := bankSegments(0, j.depth, bankDepth)
		out := make([]des.Message, 0, len(segs))
		for _, seg := range segs {
			out = append(out, des.Message{
				SourcePort: PortStorerRead,
				Kind:       des.MsgData,
				Payload: memctrl.ReadRequest{
					RobID:  j.robID,
					Vbank:  j.vbank,
					Addr:   seg.start,
					Count:  seg.length,
					Source: u.Name(),
				},
			})
		}
		j.segsRemaining = len(segs)
		j.data = make([]membank.Word128, 0, j.depth)
		u.state = storerWaitRead
		u.deadline = des.Inf
		return out, nil
	case storerActive:
		robID := u.job.robID
		u.job = nil
		u.state = storerIdle
		u.deadline = des.Inf
		return []des.Message{{
			SourcePort: PortCommit,
			Kind:       des.MsgCommit,
			Payload:    frontend.CommitPayload{RobID: robID, Result: 0},
		}}, nil
	default:
		u.deadline = des.Inf
		return nil, nil
	}
}

func (u *TDMAStorer) TimeAdvance(delta float64) {
	if u.deadline != des.Inf {
		u.deadline -= delta
	}
}

func (u *TDMAStorer) UntilNextEvent() float64 { return u.deadline }
