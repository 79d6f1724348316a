// Package des implements the discrete-event simulation kernel: a global
// clock, a typed message bus routed through a static connector topology,
// and the model scheduler that drives on_external/on_internal/time_advance.
package des

// Port names a model's typed message endpoint.
type Port string

// Kind discriminates a message's role. Most traffic is MsgData (an
// instruction, a bank payload, a DMA burst); MsgCommit is the narrower
// rob_id-only acknowledgement an execution unit sends the ROB on
// retirement, kept distinct so the commit channel isn't overloaded on
// payload shape (see SPEC_FULL.md §6, "ACK messages").
type Kind int

const (
	MsgData Kind = iota
	MsgCommit
)

// Message is one envelope flowing between models on a named port.
type Message struct {
	SourceModel string
	SourcePort  Port
	TargetModel string
	TargetPort  Port
	Timestamp   float64
	Kind        Kind
	Payload     interface{}
}
