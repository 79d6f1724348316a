package units

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/membank"
	"github.com/rvnpu/corenpu/memctrl"
)

// PortLoaderWrite is the loader's egress port to the memory controller.
const PortLoaderWrite des.Port = "write"

type loaderState int

const (
	loaderIdle loaderState = iota
	loaderWait
	loaderActive
)

type loaderJob struct {
	robID    uint64
	dramAddr uint64
	vbank    int
	depth    int
	stride   int
}

// TDMALoader executes MVIN: DRAM -> vbank, via the host bridge's DMA-read
// path and the memory controller's write path (spec.md §4.9).
type TDMALoader struct {
	state          loaderState
	job            *loaderJob
	deadline       float64
	dma            DMAClient
	latencyPerWord float64
	log            log.Logger
}

// NewTDMALoader builds a loader that reads from dma and charges
// latencyPerWord cycles per transferred word during its Active phase.
func NewTDMALoader(dma DMAClient, latencyPerWord float64) *TDMALoader {
	return &TDMALoader{state: loaderIdle, deadline: des.Inf, dma: dma, latencyPerWord: latencyPerWord, log: log.New("component", "tdma_loader")}
}

func (u *TDMALoader) Name() string { return "tdma_loader" }

// CanIssue reports whether the loader is idle and can accept a new MVIN.
func (u *TDMALoader) CanIssue() bool { return u.state == loaderIdle }

func (u *TDMALoader) OnExternal(msg des.Message, w *des.World) error {
	d, ok := msg.Payload.(frontend.Dispatched)
	if !ok {
		return common.NewProtocolError("tdma_loader: expected Dispatched payload, got %T", msg.Payload)
	}
	if u.state != loaderIdle {
		return common.NewInvalidModelState("tdma_loader: dispatch received while busy")
	}
	instr := d.Instruction
	stride := int((instr.Xs2 >> 15) & 0x7ffff)
	if stride == 0 {
		// Open Question (b): stride 0 is rewritten to 1, not treated as
		// a broadcast.
		stride = 1
	}
	u.job = &loaderJob{
		robID:    d.RobID,
		dramAddr: instr.Xs1,
		vbank:    int(instr.Xs2 & 0x1f),
		depth:    int((instr.Xs2 >> 5) & 0x3ff),
		stride:   stride,
	}
	u.state = loaderWait
	u.deadline = 1
	return nil
}

func (u *TDMALoader) OnInternal(w *des.World) ([]des.Message, error) {
	switch u.state {
	case loaderWait:
		j := u.job
		pbanks, ok := w.BMT.Pbanks(j.vbank)
		if !ok {
			return nil, common.NewInvalidModelState("tdma_loader: vbank %d not mapped", j.vbank)
		}
		bankDepth := w.Banks.Depth()
		segs := bankSegments(0, j.depth, bankDepth)
		for _, seg := range segs {
			if seg.bankIndex >= len(pbanks) {
				return nil, common.NewInvalidModelState("tdma_loader: transfer exceeds vbank %d allocation", j.vbank)
			}
			w.Scoreboard.ReserveWrite(j.robID, pbanks[seg.bankIndex])
		}

		payload := make([]membank.Word128, j.depth)
		for i := 0; i < j.depth; i++ {
			addr := j.dramAddr + uint64(i*16*j.stride)
			payload[i] = u.dma.ReadWord(addr)
		}

		out := make([]des.Message, 0, len(segs))
		for _, seg := range segs {
			out = append(out, des.Message{
				SourcePort: PortLoaderWrite,
				Kind:       des.MsgData,
				Payload: memctrl.WriteRequest{
					RobID:   j.robID,
					Vbank:   j.vbank,
					Addr:    seg.start,
					Payload: payload[seg.start : seg.start+seg.length],
					Source:  u.Name(),
				},
			})
		}
		u.state = loaderActive
		u.deadline = u.latencyPerWord * float64(j.depth)
		if u.deadline <= 0 {
			u.deadline = 1
		}
		return out, nil
	case loaderActive:
		robID := u.job.robID
		u.job = nil
		u.state = loaderIdle
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

func (u *TDMALoader) TimeAdvance(delta float64) {
	if u.deadline != des.Inf {
		u.deadline -= delta
	}
}

func (u *TDMALoader) UntilNextEvent() float64 { return u.deadline }
