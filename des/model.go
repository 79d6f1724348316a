package des

import "math"

// Inf is the "no pending event" deadline.
const Inf = math.MaxFloat64

// Model is the four-operation contract every pipeline stage implements.
type Model interface {
	// Name identifies the model in the connector table and log output.
	Name() string

	// OnExternal consumes one inbound message. It must not emit messages;
	// emission only happens from OnInternal.
	OnExternal(msg Message, w *World) error

	// OnInternal fires when UntilNextEvent reaches zero. It may emit
	// messages (with SourceModel/SourcePort set; the kernel resolves the
	// target via the connector table) and must update its own deadline.
	OnInternal(w *World) ([]Message, error)

	// TimeAdvance decrements the model's pending deadline by delta.
	TimeAdvance(delta float64)

	// UntilNextEvent returns the model's next internal-event deadline, or
	// Inf if none is pending.
	UntilNextEvent() float64
}

// Connector wires one model's output port to another model's input port.
type Connector struct {
	SourceModel string
	SourcePort  Port
	TargetModel string
	TargetPort  Port
}
