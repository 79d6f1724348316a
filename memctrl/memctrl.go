// Package memctrl implements the memory controller: it arbitrates writes
// and reads between the DMA engines, the compute engines, and the bank
// array, consulting the BMT for vbank->pbank translation and the
// scoreboard for per-pbank ordering (spec.md §4.8).
package memctrl

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/membank"
)

// Ingress ports. The spec names two illustrative write sources (TDMA
// loader, vector unit); the systolic unit also produces a result bank
// write, so WriteReq/ReadReq are shared ports carrying a Source tag
// rather than one dedicated port per producer/consumer (see DESIGN.md).
const (
	PortWriteReq des.Port = "write_req"
	PortReadReq  des.Port = "read_req"
	// PortReadResp is not a connector-table port: the controller
	// addresses read responses directly at the requesting model by
	// name, per the FIFO of source tags (spec.md §4.8 step 1).
	PortReadResp des.Port = "read_resp"
)

// WriteRequest is what a producer sends to the controller's write port.
type WriteRequest struct {
	RobID   uint64
	Vbank   int
	Addr    int
	Payload []membank.Word128
	Source  string
}

// ReadRequest is what a consumer sends to the controller's read port.
type ReadRequest struct {
	RobID  uint64
	Vbank  int
	Addr   int
	Count  int
	Source string
}

// ReadResponse is what the controller sends back to Source once a bank
// read it issued resolves.
type ReadResponse struct {
	RobID  uint64
	Data   []membank.Word128
	Source string
}

type pendingRead struct {
	robID  uint64
	data   []membank.Word128
	source string
}

// MemCtrl is the memory controller model. Per cycle it forwards at most
// one action: a completed read response takes priority over issuing a
// new bank write or bank read.
type MemCtrl struct {
	readQueue []pendingRead
	log       log.Logger
}

// New builds a memory controller.
func New() *MemCtrl {
	return &MemCtrl{log: log.New("component", "memctrl")}
}

func (m *MemCtrl) Name() string { return "memctrl" }

// translate resolves a (vbank, flat address) pair to a (pbank, in-bank
// offset) pair by striping the flat address across the vbank's allocated
// physical banks at bank-depth granularity.
func translate(w *des.World, vbank, addr int) (pbank, offset int, ok bool) {
	pbanks, mapped := w.BMT.Pbanks(vbank)
	if !mapped || len(pbanks) == 0 {
		return 0, 0, false
	}
	depth := w.Banks.Depth()
	if depth == 0 {
		return 0, 0, false
	}
	idx := addr / depth
	if idx < 0 || idx >= len(pbanks) {
		return 0, 0, false
	}
	return pbanks[idx], addr % depth, true
}

func (m *MemCtrl) OnExternal(msg des.Message, w *des.World) error {
	switch msg.TargetPort {
	case PortWriteReq:
		req, ok := msg.Payload.(WriteRequest)
		if !ok {
			return common.NewProtocolError("memctrl: expected WriteRequest, got %T", msg.Payload)
		}
		pbank, offset, ok := translate(w, req.Vbank, req.Addr)
		if !ok {
			return common.NewInvalidModelState("memctrl: write to unmapped vbank %d", req.Vbank)
		}
		if w.Scoreboard.Check(pbank, req.RobID) {
			m.log.Debug("write fast path", "rob_id", req.RobID, "pbank", pbank)
		} else {
			m.log.Debug("write slow path", "rob_id", req.RobID, "pbank", pbank)
		}
		w.Scoreboard.AddWrite(req.RobID, pbank, req.Source, req.Payload, offset)
		return nil
	case PortReadReq:
		req, ok := msg.Payload.(ReadRequest)
		if !ok {
			return common.NewProtocolError("memctrl: expected ReadRequest, got %T", msg.Payload)
		}
		pbank, offset, ok := translate(w, req.Vbank, req.Addr)
		if !ok {
			return common.NewInvalidModelState("memctrl: read from unmapped vbank %d", req.Vbank)
		}
		if w.Scoreboard.Check(pbank, req.RobID) {
			m.log.Debug("read fast path", "rob_id", req.RobID, "pbank", pbank)
		} else {
			m.log.Debug("read slow path", "rob_id", req.RobID, "pbank", pbank)
		}
		w.Scoreboard.AddRead(req.RobID, pbank, offset, req.Count, req.Source)
		return nil
	default:
		return common.NewProtocolError("memctrl: unknown ingress port %q", msg.TargetPort)
	}
}

func (m *MemCtrl) OnInternal(w *des.World) ([]des.Message, error) {
	if len(m.readQueue) > 0 {
		resp := m.readQueue[0]
		m.readQueue = m.readQueue[1:]
		return []des.Message{{
			TargetModel: resp.source,
			TargetPort:  PortReadResp,
			Kind:        des.MsgData,
			Payload:     ReadResponse{RobID: resp.robID, Data: resp.data, Source: resp.source},
		}}, nil
	}

	if entry, pbank, ok := w.Scoreboard.OneReadyWrite(); ok {
		w.Scoreboard.MarkInFlight(pbank, entry)
		w.Banks.Write(pbank, entry.Addr, entry.Payload)
		w.Scoreboard.MarkCompleted(pbank)
	}
	if rd, pbank, ok := w.Scoreboard.OneReadyRead(); ok {
		data := w.Banks.Read(pbank, rd.Addr, rd.Count)
		m.readQueue = append(m.readQueue, pendingRead{robID: rd.RobID, data: data, source: rd.Source})
	}
	return nil, nil
}

func (m *MemCtrl) TimeAdvance(delta float64) {}

func (m *MemCtrl) UntilNextEvent() float64 { return 1 }
