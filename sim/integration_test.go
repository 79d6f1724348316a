package sim

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/membank"
	"github.com/rvnpu/corenpu/params"
)

// fakeDMA stands in for the host bridge's DMA connections: a flat
// addr->word map, directly observable by the test.
type fakeDMA struct {
	mem map[uint64]membank.Word128
}

func newFakeDMA() *fakeDMA { return &fakeDMA{mem: make(map[uint64]membank.Word128)} }

func (f *fakeDMA) ReadWord(addr uint64) membank.Word128  { return f.mem[addr] }
func (f *fakeDMA) WriteWord(addr uint64, w membank.Word128) { f.mem[addr] = w }

// retireObserver records every retired (rob_id, result) pair the ROB
// emits, standing in for the host bridge's command server.
type retireObserver struct {
	retired []frontend.Retired
}

func (r *retireObserver) Name() string { return "observer" }
func (r *retireObserver) OnExternal(msg des.Message, w *des.World) error {
	r.retired = append(r.retired, msg.Payload.(frontend.Retired))
	return nil
}
func (r *retireObserver) OnInternal(w *des.World) ([]des.Message, error) { return nil, nil }
func (r *retireObserver) TimeAdvance(delta float64)                      {}
func (r *retireObserver) UntilNextEvent() float64                        { return des.Inf }

func mvXs2(vbank, depth, stride int) uint64 {
	return uint64(vbank)&0x1f | (uint64(depth)&0x3ff)<<5 | (uint64(stride)&0x7ffff)<<15
}

func msetAllocXs2(rows, cols int) uint64 {
	return 1 | (uint64(rows)&0x1f)<<1 | (uint64(cols)&0xff)<<6
}

func runUntil(t *testing.T, sim *Simulator, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		require.NoError(t, sim.Kernel.Step())
		if !time.Now().Before(deadline) {
			t.Fatalf("simulation did not complete in time; world state:\n%s", spew.Sdump(sim.Kernel.World()))
		}
	}
}

func TestMVINMVOUTRoundTrip(t *testing.T) {
	cfg := params.Default()
	dma := newFakeDMA()
	dma.mem[0] = membank.Word128{Lo: 111}
	dma.mem[16] = membank.Word128{Lo: 222}

	sim := New(cfg, dma)
	obs := &retireObserver{}
	sim.Kernel.Register(obs)
	sim.Kernel.Wire(des.Connector{SourceModel: sim.rob.Name(), SourcePort: frontend.PortRetire, TargetModel: obs.Name()})

	sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctMSET, Xs1: 0, Xs2: msetAllocXs2(1, 1)})
	runUntil(t, sim, func() bool { return len(obs.retired) >= 1 })
	require.Equal(t, uint64(1), obs.retired[0].Result, "bmt allocate must succeed")

	sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctMVIN, Xs1: 0, Xs2: mvXs2(0, 2, 1)})
	runUntil(t, sim, func() bool { return len(obs.retired) >= 2 })

	sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctMVOUT, Xs1: 1000, Xs2: mvXs2(0, 2, 1)})
	runUntil(t, sim, func() bool { return len(obs.retired) >= 3 })

	want := map[uint64]membank.Word128{1000: {Lo: 111}, 1016: {Lo: 222}}
	got := map[uint64]membank.Word128{1000: dma.mem[1000], 1016: dma.mem[1016]}
	require.True(t, cmp.Equal(want, got), "MVOUT round trip mismatch:\n%s", cmp.Diff(want, got))
}

func TestVectorDotProductThroughFullPipeline(t *testing.T) {
	cfg := params.Default()
	dma := newFakeDMA()
	for i := 0; i < 16; i++ {
		dma.mem[uint64(i*16)] = membank.Word128{Lo: 2}
		dma.mem[uint64(4096+i*16)] = membank.Word128{Lo: 3}
	}

	sim := New(cfg, dma)
	obs := &retireObserver{}
	sim.Kernel.Register(obs)
	sim.Kernel.Wire(des.Connector{SourceModel: sim.rob.Name(), SourcePort: frontend.PortRetire, TargetModel: obs.Name()})

	// Allocate vbank0, vbank1 (operands) and vbank2 (result). The decoder
	// holds a single in-flight instruction, so each allocation must retire
	// before the next is injected.
	for i, vb := range []int{0, 1, 2} {
		sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctMSET, Xs1: uint64(vb) << 1, Xs2: msetAllocXs2(1, 1)})
		want := i + 1
		runUntil(t, sim, func() bool { return len(obs.retired) >= want })
	}

	sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctMVIN, Xs1: 0, Xs2: mvXs2(0, 16, 1)})
	runUntil(t, sim, func() bool { return len(obs.retired) >= 4 })

	sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctMVIN, Xs1: 4096, Xs2: mvXs2(1, 16, 1)})
	runUntil(t, sim, func() bool { return len(obs.retired) >= 5 })

	sim.Kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: frontend.FunctVector, Xs1: 0 | 1<<8, Xs2: 2})
	runUntil(t, sim, func() bool { return len(obs.retired) >= 6 })

	require.Equal(t, uint64(16*2*3), obs.retired[5].Result)
}
