package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvnpu/corenpu/des"
)

func TestDecoderClassifiesAndDispatchesAfterOneCycle(t *testing.T) {
	d := NewDecoder(func() bool { return true })
	require.NoError(t, d.OnExternal(des.Message{Payload: RawInstruction{Funct: FunctMVIN, Xs1: 1, Xs2: 2}}, nil))
	require.Equal(t, float64(1), d.UntilNextEvent())

	msgs, err := d.OnInternal(nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	instr := msgs[0].Payload.(Instruction)
	require.Equal(t, DomainLoader, instr.Domain)
	require.Equal(t, des.Inf, d.UntilNextEvent())
}

func TestDecoderHoldsWhileROBNotReady(t *testing.T) {
	ready := false
	d := NewDecoder(func() bool { return ready })
	require.NoError(t, d.OnExternal(des.Message{Payload: RawInstruction{Funct: FunctMSET}}, nil))

	msgs, err := d.OnInternal(nil)
	require.NoError(t, err)
	require.Nil(t, msgs)
	require.Equal(t, float64(1), d.UntilNextEvent(), "decoder must retry next cycle while the ROB is full")

	ready = true
	msgs, err = d.OnInternal(nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestDecoderRejectsWrongPayload(t *testing.T) {
	d := NewDecoder(func() bool { return true })
	err := d.OnExternal(des.Message{Payload: "not an instruction"}, nil)
	require.Error(t, err)
}

func TestDecoderRejectsInstructionWhileBufferOccupied(t *testing.T) {
	d := NewDecoder(func() bool { return true })
	require.NoError(t, d.OnExternal(des.Message{Payload: RawInstruction{Funct: FunctMSET}}, nil))
	err := d.OnExternal(des.Message{Payload: RawInstruction{Funct: FunctVector}}, nil)
	require.Error(t, err)
}

func TestDecoderIdleWhenNoPendingInstruction(t *testing.T) {
	d := NewDecoder(func() bool { return true })
	msgs, err := d.OnInternal(nil)
	require.NoError(t, err)
	require.Nil(t, msgs)
	require.Equal(t, des.Inf, d.UntilNextEvent())
}
