package des

import (
	"fmt"
	"sync"

	"github.com/rvnpu/corenpu/log"
)

// Kernel advances a shared clock, delivers messages to target models
// through a static connector topology, and fires internal events. Model
// firings are strictly sequential within Step — the kernel itself owns
// no goroutines; callers (the host bridge's listener goroutines) hand it
// work through Inject.
type Kernel struct {
	world      *World
	models     []Model
	byName     map[string]Model
	connectors []Connector

	clock float64
	queue []Message

	inboxMu sync.Mutex
	inbox   []Message

	log log.Logger
}

// NewKernel creates a kernel operating over world.
func NewKernel(world *World) *Kernel {
	return &Kernel{
		world:  world,
		byName: make(map[string]Model),
		log:    log.New("component", "kernel"),
	}
}

// Register adds a model to the scheduler. Registration order is the
// deterministic tie-break order used when multiple models fire internal
// events in the same step.
func (k *Kernel) Register(m Model) {
	k.models = append(k.models, m)
	k.byName[m.Name()] = m
}

// Wire adds a static connector: messages a model emits from its source
// port are routed to the connector's target model/port.
func (k *Kernel) Wire(c Connector) {
	k.connectors = append(k.connectors, c)
}

// Clock returns the current simulated time.
func (k *Kernel) Clock() float64 { return k.clock }

// World returns the kernel's World, e.g. for host-bridge DMA helpers that
// need direct bank/BMT/scoreboard access outside the model event loop.
func (k *Kernel) World() *World { return k.world }

// Inject enqueues an externally-originated message (from the host bridge)
// for delivery to targetModel/targetPort at the current simulated time.
// Safe to call from a goroutine other than the one driving Step.
func (k *Kernel) Inject(targetModel string, targetPort Port, payload interface{}) {
	k.inboxMu.Lock()
	defer k.inboxMu.Unlock()
	k.inbox = append(k.inbox, Message{
		TargetModel: targetModel,
		TargetPort:  targetPort,
		Kind:        MsgData,
		Payload:     payload,
	})
}

func (k *Kernel) drainInbox() []Message {
	k.inboxMu.Lock()
	defer k.inboxMu.Unlock()
	if len(k.inbox) == 0 {
		return nil
	}
	out := k.inbox
	k.inbox = nil
	for i := range out {
		out[i].Timestamp = k.clock
	}
	return out
}

// route resolves msg's connector-table destination(s) and enqueues the
// resulting, fully-addressed message(s) for delivery on the next Step.
func (k *Kernel) route(msg Message) {
	// A model may address a message directly (e.g. the memory
	// controller replying to whichever unit issued a read, per its
	// FIFO of source tags) instead of going through the static
	// connector table.
	if msg.TargetModel != "" {
		k.queue = append(k.queue, msg)
		return
	}
	matched := false
	for _, c := range k.connectors {
		if c.SourceModel == msg.SourceModel && c.SourcePort == msg.SourcePort {
			out := msg
			out.TargetModel = c.TargetModel
			out.TargetPort = c.TargetPort
			k.queue = append(k.queue, out)
			matched = true
		}
	}
	if !matched {
		k.log.Warn("message emitted on unwired port", "model", msg.SourceModel, "port", msg.SourcePort)
	}
}

// Step executes exactly one DES kernel step: drain externals, advance the
// clock to the next deadline, and fire internal events. It returns an
// error (without advancing the clock) if any model's handler fails.
func (k *Kernel) Step() error {
	injected := k.drainInbox()
	k.queue = append(k.queue, injected...)

	var now, future []Message
	for _, m := range k.queue {
		if m.Timestamp <= k.clock {
			now = append(now, m)
		} else {
			future = append(future, m)
		}
	}
	k.queue = future

	delivered := len(now) > 0
	for _, m := range now {
		model, ok := k.byName[m.TargetModel]
		if !ok {
			k.log.Warn("message targets unknown model", "target", m.TargetModel)
			continue
		}
		if err := model.OnExternal(m, k.world); err != nil {
			return fmt.Errorf("on_external on %s: %w", m.TargetModel, err)
		}
	}

	delta := Inf
	for _, m := range k.models {
		if d := m.UntilNextEvent(); d < delta {
			delta = d
		}
	}
	if delta == Inf {
		if !delivered {
			return nil // idle step
		}
		delta = 0
	}

	for _, m := range k.models {
		m.TimeAdvance(delta)
	}
	prev := k.clock
	k.clock += delta

	for _, m := range k.models {
		if m.UntilNextEvent() <= 0 {
			msgs, err := m.OnInternal(k.world)
			if err != nil {
				k.clock = prev
				return fmt.Errorf("on_internal on %s: %w", m.Name(), err)
			}
			for _, em := range msgs {
				em.SourceModel = m.Name()
				em.Timestamp = k.clock
				k.route(em)
			}
		}
	}
	return nil
}

// Run steps the kernel until maxSteps idle-or-processed steps have
// elapsed, or an error occurs. It is the simple driving loop used by
// tests; the standalone binary calls Step from its own loop instead, so
// it can stop once the host disconnects.
func (k *Kernel) Run(maxSteps int) error {
	for i := 0; i < maxSteps; i++ {
		if err := k.Step(); err != nil {
			return err
		}
	}
	return nil
}
