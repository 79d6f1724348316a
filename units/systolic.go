package units

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/membank"
	"github.com/rvnpu/corenpu/memctrl"
)

// systolicDim is the fixed processing-element grid size the array is
// always zero-padded to (spec.md §4.11, §9 Open Question (c)).
const systolicDim = 16

// Egress ports.
const (
	PortSystolicRead  des.Port = "read"
	PortSystolicWrite des.Port = "write"
)

type systolicState int

const (
	sysIdle systolicState = iota
	sysIssueOp1
	sysWaitOp1
	sysIssueOp2
	sysWaitOp2
	sysComputing
	sysIssueWrite
	sysWriteWait
)

type systolicJob struct {
	robID   uint64
	op1Bank int
	op2Bank int
	wrBank  int
	m, n, k int

	op1 [][]uint8 // m x k, row-major
	op2 [][]uint8 // n x k, transposed from the k x n wire layout

	acc [systolicDim][systolicDim]uint32
}

// Systolic is the systolic array unit: a Kung-Leiserson 16x16 PE grid
// computing A(m,k) * B(k,n), both operands zero-padded to 16x16
// (spec.md §4.11).
type Systolic struct {
	state        systolicState
	job          *systolicJob
	deadline     float64
	baseLatency  float64
	alphaPerWord float64
	log          log.Logger
}

// NewSystolic builds a systolic unit; read/write phase latencies follow
// base + alphaPerWord*wordCount, compute phase follows k+rows+cols-2.
func NewSystolic(baseLatency, alphaPerWord float64) *Systolic {
	return &Systolic{state: sysIdle, deadline: des.Inf, baseLatency: baseLatency, alphaPerWord: alphaPerWord, log: log.New("component", "systolic")}
}

func (u *Systolic) Name() string { return "systolic" }

// CanIssue reports whether the systolic unit is idle.
func (u *Systolic) CanIssue() bool { return u.state == sysIdle }

func (u *Systolic) OnExternal(msg des.Message, w *des.World) error {
	if msg.TargetPort == memctrl.PortReadResp {
		resp, ok := msg.Payload.(memctrl.ReadResponse)
		if !ok {
			return common.NewProtocolError("systolic: expected ReadResponse payload, got %T", msg.Payload)
		}
		switch u.state {
		case sysWaitOp1:
			u.job.op1 = unpackRowMajor(resp.Data, u.job.m, u.job.k)
			u.state = sysIssueOp2
			u.deadline = 1
		case sysWaitOp2:
			rowMajor := unpackRowMajor(resp.Data, u.job.k, u.job.n)
			u.job.op2 = transpose(rowMajor, u.job.k, u.job.n)
			u.state = sysComputing
			u.deadline = float64(u.job.k+u.job.m+u.job.n) - 2
			if u.deadline < 1 {
				u.deadline = 1
			}
		default:
			return common.NewInvalidModelState("systolic: unexpected read response in state %d", u.state)
		}
		return nil
	}

	d, ok := msg.Payload.(frontend.Dispatched)
	if !ok {
		return common.NewProtocolError("systolic: expected Dispatched payload, got %T", msg.Payload)
	}
	if u.state != sysIdle {
		return common.NewInvalidModelState("systolic: dispatch received while busy")
	}
	instr := d.Instruction
	u.job = &systolicJob{
		robID:   d.RobID,
		op1Bank: int(instr.Xs1 & 0xff),
		op2Bank: int((instr.Xs1 >> 8) & 0xff),
		wrBank:  int((instr.Xs1 >> 16) & 0xff),
		m:       int(instr.Xs2 & 0xff),
		n:       int((instr.Xs2 >> 8) & 0xff),
		k:       int((instr.Xs2 >> 16) & 0xff),
	}
	u.state = sysIssueOp1
	u.deadline = 1
	return nil
}

func (u *Systolic) OnInternal(w *des.World) ([]des.Message, error) {
	switch u.state {
	case sysIssueOp1:
		u.state = sysWaitOp1
		u.deadline = des.Inf
		return []des.Message{u.readReq(u.job.op1Bank, wordsFor(u.job.m*u.job.k))}, nil
	case sysIssueOp2:
		u.state = sysWaitOp2
		u.deadline = des.Inf
		return []des.Message{u.readReq(u.job.op2Bank, wordsFor(u.job.k*u.job.n))}, nil
	case sysComputing:
		runSystolic(u.job)
		u.state = sysIssueWrite
		u.deadline = 1
		return nil, nil
	case sysIssueWrite:
		payload := packAccumulators(&u.job.acc)
		u.deadline = u.baseLatency + u.alphaPerWord*float64(len(payload))
		if u.deadline < 1 {
			u.deadline = 1
		}
		u.state = sysWriteWait
		return []des.Message{{
			SourcePort: PortSystolicWrite,
			Kind:       des.MsgData,
			Payload: memctrl.WriteRequest{
				RobID:   u.job.robID,
				Vbank:   u.job.wrBank,
				Addr:    0,
				Payload: payload,
				Source:  u.Name(),
			},
		}}, nil
	case sysWriteWait:
		robID := u.job.robID
		result := uint64(u.job.acc[0][0])
		u.job = nil
		u.state = sysIdle
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

func (u *Systolic) readReq(vbank, count int) des.Message {
	return des.Message{
		SourcePort: PortSystolicRead,
		Kind:       des.MsgData,
		Payload: memctrl.ReadRequest{
			RobID:  u.job.robID,
			Vbank:  vbank,
			Addr:   0,
			Count:  count,
			Source: u.Name(),
		},
	}
}

func (u *Systolic) TimeAdvance(delta float64) {
	if u.deadline != des.Inf {
		u.deadline -= delta
	}
}

func (u *Systolic) UntilNextEvent() float64 { return u.deadline }

// wordsFor returns how many 128-bit (16-byte) words are needed to hold
// count packed 8-bit elements.
func wordsFor(count int) int {
	return (count + 15) / 16
}

// unpackRowMajor flattens words into bytes and slices out a rows x cols
// row-major matrix of 8-bit elements.
func unpackRowMajor(words []membank.Word128, rows, cols int) [][]uint8 {
	bytes := make([]uint8, 0, len(words)*16)
	for _, w := range words {
		b := w.Bytes16()
		bytes = append(bytes, b[:]...)
	}
	m := make([][]uint8, rows)
	idx := 0
	for i := 0; i < rows; i++ {
		m[i] = make([]uint8, cols)
		for j := 0; j < cols; j++ {
			if idx < len(bytes) {
				m[i][j] = bytes[idx]
			}
			idx++
		}
	}
	return m
}

// transpose turns a rows x cols matrix into a cols x rows one, modeling
// "op2 accessed column-wise".
func transpose(m [][]uint8, rows, cols int) [][]uint8 {
	out := make([][]uint8, cols)
	for j := 0; j < cols; j++ {
		out[j] = make([]uint8, rows)
		for i := 0; i < rows; i++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// runSystolic simulates the full Kung-Leiserson wavefront schedule for
// job in one shot: job.m+job.k+job.n-1 cycles over a 16x16 PE grid, each
// PE multiplying (u32 x u32 -> u32) and wrapping-accumulating its running
// sum (spec.md §4.11 step 4). A-values are injected at column 0 and
// propagate rightward each cycle; B-values are injected at row 0 and
// propagate downward; job.op2 is already stored transposed (n x k) so
// column j's injected stream is job.op2[j][·].
func runSystolic(job *systolicJob) {
	var aGrid, bGrid [systolicDim][systolicDim]uint32
	cycles := job.m + job.k + job.n - 1
	if cycles < 1 {
		cycles = 1
	}
	for t := 0; t < cycles; t++ {
		var newA, newB [systolicDim][systolicDim]uint32
		for i := 0; i < systolicDim; i++ {
			for j := 0; j < systolicDim; j++ {
				if j == 0 {
					tt := t - i
					if tt >= 0 && tt < job.k && i < job.m {
						newA[i][j] = uint32(job.op1[i][tt])
					}
				} else {
					newA[i][j] = aGrid[i][j-1]
				}
				if i == 0 {
					tt := t - j
					if tt >= 0 && tt < job.k && j < job.n {
						newB[i][j] = uint32(job.op2[j][tt])
					}
				} else {
					newB[i][j] = bGrid[i-1][j]
				}
			}
		}
		for i := 0; i < systolicDim; i++ {
			for j := 0; j < systolicDim; j++ {
				job.acc[i][j] += newA[i][j] * newB[i][j]
			}
		}
		aGrid, bGrid = newA, newB
	}
}

// packAccumulators packs four PE accumulators per 128-bit word, row by
// row: word = pe3<<96 | pe2<<64 | pe1<<32 | pe0 (spec.md §4.11 step 5),
// yielding 4 words/row * 16 rows = 64 words.
func packAccumulators(acc *[systolicDim][systolicDim]uint32) []membank.Word128 {
	out := make([]membank.Word128, 0, systolicDim*systolicDim/4)
	for i := 0; i < systolicDim; i++ {
		for g := 0; g < systolicDim/4; g++ {
			pe0 := uint64(acc[i][4*g])
			pe1 := uint64(acc[i][4*g+1])
			pe2 := uint64(acc[i][4*g+2])
			pe3 := uint64(acc[i][4*g+3])
			out = append(out, membank.Word128{
				Lo: pe1<<32 | pe0,
				Hi: pe3<<32 | pe2,
			})
		}
	}
	return out
}
