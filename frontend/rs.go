package frontend

import (
	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/log"
)

// Egress ports, one per execution unit; the reservation station's static
// routing table (spec.md §4.5) is realized as one connector per port.
const (
	PortToMSET     des.Port = "to_mset"
	PortToLoader   des.Port = "to_loader"
	PortToStorer   des.Port = "to_storer"
	PortToVector   des.Port = "to_vector"
	PortToSystolic des.Port = "to_systolic"
)

var domainPort = map[DomainID]des.Port{
	DomainMSET:     PortToMSET,
	DomainLoader:   PortToLoader,
	DomainStorer:   PortToStorer,
	DomainVector:   PortToVector,
	DomainSystolic: PortToSystolic,
}

// ReservationStation is a stateless-by-funct router holding a single
// instruction buffer: it forwards to the target unit only while that
// unit's can_issue flag is true, otherwise it holds and retries
// (spec.md §4.5).
type ReservationStation struct {
	pending  *Dispatched
	deadline float64
	canIssue map[DomainID]func() bool
	log      log.Logger
}

// NewReservationStation builds an RS that consults canIssue[domain]()
// before forwarding an instruction of that domain.
func NewReservationStation(canIssue map[DomainID]func() bool) *ReservationStation {
	return &ReservationStation{deadline: des.Inf, canIssue: canIssue, log: log.New("component", "rs")}
}

func (s *ReservationStation) Name() string { return "rs" }

// Ready reports whether the RS's single buffer slot is free; the ROB
// consults this before dispatching its next entry.
func (s *ReservationStation) Ready() bool { return s.pending == nil }

func (s *ReservationStation) OnExternal(msg des.Message, w *des.World) error {
	d, ok := msg.Payload.(Dispatched)
	if !ok {
		return common.NewProtocolError("rs: expected Dispatched payload, got %T", msg.Payload)
	}
	if s.pending != nil {
		return common.NewInvalidModelState("rs: received dispatch while buffer occupied")
	}
	s.pending = &d
	s.deadline = 1
	return nil
}

func (s *ReservationStation) OnInternal(w *des.World) ([]des.Message, error) {
	if s.pending == nil {
		s.deadline = des.Inf
		return nil, nil
	}
	ready, ok := s.canIssue[s.pending.Domain]
	if !ok {
		return nil, common.NewInvalidModelState("rs: no execution unit wired for domain %d", s.pending.Domain)
	}
	if !ready() {
		s.deadline = 1
		return nil, nil
	}
	port, ok := domainPort[s.pending.Domain]
	if !ok {
		return nil, common.NewInvalidModelState("rs: no egress port for domain %d", s.pending.Domain)
	}
	out := des.Message{SourcePort: port, Kind: des.MsgData, Payload: *s.pending}
	s.pending = nil
	s.deadline = des.Inf
	return []des.Message{out}, nil
}

func (s *ReservationStation) TimeAdvance(delta float64) {
	if s.deadline != des.Inf {
		s.deadline -= delta
	}
}

func (s *ReservationStation) UntilNextEvent() float64 { return s.deadline }
