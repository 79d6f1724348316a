// Package sim wires every pipeline component into a single des.Kernel,
// building the declarative connector table spec.md §9's design notes
// prefer over implicit port-name matching.
package sim

import (
	"net"

	"github.com/fjl/memsize"

	"github.com/rvnpu/corenpu/bridge"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/memctrl"
	"github.com/rvnpu/corenpu/params"
	"github.com/rvnpu/corenpu/units"
)

// Simulator owns the kernel and the handful of model references other
// setup code (the command server, tests) needs by name.
type Simulator struct {
	Kernel *des.Kernel
	rob    *frontend.ROB
	log    log.Logger
}

// New builds every model, wires the static connector topology over a
// fresh World sized per cfg, and returns the ready-to-step Simulator.
// dma supplies the TDMA engines' synchronous host-DMA calls.
func New(cfg params.Config, dma units.DMAClient) *Simulator {
	world := des.NewWorld(cfg.BankCount, cfg.BankDepth)
	k := des.NewKernel(world)

	mc := memctrl.New()
	mset := units.NewMSET()
	loader := units.NewTDMALoader(dma, cfg.LoaderLatencyPerWord)
	storer := units.NewTDMAStorer(dma, cfg.StorerLatencyPerWord)
	vector := units.NewVector(cfg.VectorReadLatency, cfg.VectorComputeLatency, cfg.VectorWriteLatency)
	systolic := units.NewSystolic(cfg.SystolicBaseLatency, cfg.SystolicAlphaPerWord)

	canIssue := map[frontend.DomainID]func() bool{
		frontend.DomainMSET:     mset.CanIssue,
		frontend.DomainLoader:   loader.CanIssue,
		frontend.DomainStorer:   storer.CanIssue,
		frontend.DomainVector:   vector.CanIssue,
		frontend.DomainSystolic: systolic.CanIssue,
	}
	rs := frontend.NewReservationStation(canIssue)
	rob := frontend.NewROB(cfg.ROBCapacity, rs.Ready)
	decoder := frontend.NewDecoder(rob.Ready)

	k.Register(decoder)
	k.Register(rob)
	k.Register(rs)
	k.Register(mc)
	k.Register(mset)
	k.Register(loader)
	k.Register(storer)
	k.Register(vector)
	k.Register(systolic)

	k.Wire(des.Connector{SourceModel: decoder.Name(), SourcePort: frontend.PortOut, TargetModel: rob.Name()})
	k.Wire(des.Connector{SourceModel: rob.Name(), SourcePort: frontend.PortDispatch, TargetModel: rs.Name()})

	k.Wire(des.Connector{SourceModel: rs.Name(), SourcePort: frontend.PortToMSET, TargetModel: mset.Name()})
	k.Wire(des.Connector{SourceModel: rs.Name(), SourcePort: frontend.PortToLoader, TargetModel: loader.Name()})
	k.Wire(des.Connector{SourceModel: rs.Name(), SourcePort: frontend.PortToStorer, TargetModel: storer.Name()})
	k.Wire(des.Connector{SourceModel: rs.Name(), SourcePort: frontend.PortToVector, TargetModel: vector.Name()})
	k.Wire(des.Connector{SourceModel: rs.Name(), SourcePort: frontend.PortToSystolic, TargetModel: systolic.Name()})

	for _, unitName := range []string{mset.Name(), loader.Name(), storer.Name(), vector.Name(), systolic.Name()} {
		k.Wire(des.Connector{SourceModel: unitName, SourcePort: units.PortCommit, TargetModel: rob.Name()})
	}

	k.Wire(des.Connector{SourceModel: loader.Name(), SourcePort: units.PortLoaderWrite, TargetModel: mc.Name(), TargetPort: memctrl.PortWriteReq})
	k.Wire(des.Connector{SourceModel: storer.Name(), SourcePort: units.PortStorerRead, TargetModel: mc.Name(), TargetPort: memctrl.PortReadReq})
	k.Wire(des.Connector{SourceModel: vector.Name(), SourcePort: units.PortVectorRead, TargetModel: mc.Name(), TargetPort: memctrl.PortReadReq})
	k.Wire(des.Connector{SourceModel: vector.Name(), SourcePort: units.PortVectorWrite, TargetModel: mc.Name(), TargetPort: memctrl.PortWriteReq})
	k.Wire(des.Connector{SourceModel: systolic.Name(), SourcePort: units.PortSystolicRead, TargetModel: mc.Name(), TargetPort: memctrl.PortReadReq})
	k.Wire(des.Connector{SourceModel: systolic.Name(), SourcePort: units.PortSystolicWrite, TargetModel: mc.Name(), TargetPort: memctrl.PortWriteReq})

	return &Simulator{Kernel: k, rob: rob, log: log.New("component", "sim")}
}

// AttachCmdServer registers conn's command-port model and wires the
// ROB's retire port to it, so every committed instruction's result word
// is written back to the host (spec.md §4.2).
func (s *Simulator) AttachCmdServer(conn net.Conn) *bridge.CmdServer {
	cs := bridge.NewCmdServer(conn, s.Kernel)
	s.Kernel.Register(cs)
	s.Kernel.Wire(des.Connector{SourceModel: s.rob.Name(), SourcePort: frontend.PortRetire, TargetModel: cs.Name()})
	return cs
}

// LogMemoryFootprint scans the kernel's World with fjl/memsize and logs
// the estimated resident size, mirroring geth's trie-cache size
// reporting (SPEC_FULL.md §4.13).
func (s *Simulator) LogMemoryFootprint() {
	sizes := memsize.Scan(s.Kernel.World())
	s.log.Info("world memory footprint", "total_bytes", sizes.Total)
}
