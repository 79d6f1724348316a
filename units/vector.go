package units

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/membank"
	"github.com/rvnpu/corenpu/memctrl"
)

// vectorWidth is the fixed element count of a vector op (spec.md §4.10):
// 16 words read from each operand bank, 16 written to the result bank.
const vectorWidth = 16

// Egress ports.
const (
	PortVectorRead  des.Port = "read"
	PortVectorWrite des.Port = "write"
)

type vectorState int

const (
	vecIdle vectorState = iota
	vecIssueOp1
	vecWaitOp1
	vecIssueOp2
	vecWaitOp2
	vecComputing
	vecIssueWrite
	vecWriteWait
)

type vectorJob struct {
	robID   uint64
	op1Bank int
	op2Bank int
	wrBank  int
	iter    int
	iterIdx int
	op1     []membank.Word128
	op2     []membank.Word128
	acc     membank.Word128
}

// Vector is the vector unit: a 16-element multiply-accumulate across two
// operand banks, repeated for `iter` successive vectorWidth-sized chunks
// (spec.md §6's xs2 iter field) and broadcast to all 16 output words
// (spec.md §4.10).
type Vector struct {
	state           vectorState
	job             *vectorJob
	deadline        float64
	readLatency     float64
	computeLatency  float64
	writeLatency    float64
	log             log.Logger
}

// NewVector builds a vector unit with the given per-phase latencies.
func NewVector(readLatency, computeLatency, writeLatency float64) *Vector {
	return &Vector{state: vecIdle, deadline: des.Inf, readLatency: readLatency, computeLatency: computeLatency, writeLatency: writeLatency, log: log.New("component", "vector")}
}

func (u *Vector) Name() string { return "vector" }

// CanIssue reports whether the vector unit is idle.
func (u *Vector) CanIssue() bool { return u.state == vecIdle }

func (u *Vector) OnExternal(msg des.Message, w *des.World) error {
	if msg.TargetPort == memctrl.PortReadResp {
		resp, ok := msg.Payload.(memctrl.ReadResponse)
		if !ok {
			return common.NewProtocolError("vector: expected ReadResponse payload, got %T", msg.Payload)
		}
		switch u.state {
		case vecWaitOp1:
			if len(resp.Data) != vectorWidth {
				return common.NewInvalidModelState("vector: op1 response had %d words, want %d", len(resp.Data), vectorWidth)
			}
			u.job.op1 = resp.Data
			u.state = vecIssueOp2
			u.deadline = u.readLatency
		case vecWaitOp2:
			if len(resp.Data) != vectorWidth {
				return common.NewInvalidModelState("vector: op2 response had %d words, want %d", len(resp.Data), vectorWidth)
			}
			u.job.op2 = resp.Data
			u.state = vecComputing
			u.deadline = u.computeLatency
		default:
			return common.NewInvalidModelState("vector: unexpected read response in state %d", u.state)
		}
		return nil
	}

	d, ok := msg.Payload.(frontend.Dispatched)
	if !ok {
		return common.NewProtocolError("vector: expected Dispatched payload, got %T", msg.Payload)
	}
	if u.state != vecIdle {
		return common.NewInvalidModelState("vector: dispatch received while busy")
	}
	instr := d.Instruction
	iter := int((instr.Xs2 >> 8) & 0xffff)
	if iter == 0 {
		// Matches the MVIN stride==0 rewrite: a zero count means "one pass",
		// not "no work" (spec.md §9(b)'s precedent for a zero count field).
		iter = 1
	}
	u.job = &vectorJob{
		robID:   d.RobID,
		op1Bank: int(instr.Xs1 & 0xff),
		op2Bank: int((instr.Xs1 >> 8) & 0xff),
		wrBank:  int(instr.Xs2 & 0xff),
		iter:    iter,
	}
	u.state = vecIssueOp1
	u.deadline = 1
	return nil
}

func (u *Vector) OnInternal(w *des.World) ([]des.Message, error) {
	switch u.state {
	case vecIssueOp1:
		u.state = vecWaitOp1
		u.deadline = des.Inf
		return []des.Message{u.readReq(u.job.op1Bank)}, nil
	case vecIssueOp2:
		u.state = vecWaitOp2
		u.deadline = des.Inf
		return []des.Message{u.readReq(u.job.op2Bank)}, nil
	case vecComputing:
		for i := 0; i < vectorWidth; i++ {
			u.job.acc = u.job.acc.MulAcc(u.job.op1[i].Lo, u.job.op2[i].Lo)
		}
		u.job.iterIdx++
		if u.job.iterIdx < u.job.iter {
			// iter > 1 accumulates across successive vectorWidth-sized
			// chunks at increasing bank offsets rather than writing early.
			u.state = vecIssueOp1
			u.deadline = 1
			return nil, nil
		}
		u.state = vecIssueWrite
		u.deadline = 1
		return nil, nil
	case vecIssueWrite:
		payload := make([]membank.Word128, vectorWidth)
		for i := range payload {
			payload[i] = u.job.acc
		}
		u.state = vecWriteWait
		u.deadline = u.writeLatency
		return []des.Message{{
			SourcePort: PortVectorWrite,
			Kind:       des.MsgData,
			Payload: memctrl.WriteRequest{
				RobID:   u.job.robID,
				Vbank:   u.job.wrBank,
				Addr:    0,
				Payload: payload,
				Source:  u.Name(),
			},
		}}, nil
	case vecWriteWait:
		result := u.job.acc.Lo
		robID := u.job.robID
		u.job = nil
		u.state = vecIdle
		u.deadline = des.Inf
		return []des.Message{{
			SourcePort: PortCommit,
			Kind:       des.MsgCommit,
			Payload:    frontend.CommitPayload{RobID: robID, Result: result},
		}}, nil
	default:
		u.deadline = des.Inf
		return nil, nil
	}
}

func (u *Vector) readReq(vbank int) des.Message {
	return des.Message{
		SourcePort: PortVectorRead,
		Kind:       des.MsgData,
		Payload: memctrl.ReadRequest{
			RobID:  u.job.robID,
			Vbank:  vbank,
			Addr:   u.job.iterIdx * vectorWidth,
			Count:  vectorWidth,
			Source: u.Name(),
		},
	}
}

func (u *Vector) TimeAdvance(delta float64) {
	if u.deadline != des.Inf {
		u.deadline -= delta
	}
}

func (u *Vector) UntilNextEvent() float64 { return u.deadline }
