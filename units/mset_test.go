package units

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
)

func dispatchMSET(xs1, xs2 uint64) frontend.Dispatched {
	return frontend.Dispatched{RobID: 1, Instruction: frontend.Instruction{Funct: frontend.FunctMSET, Xs1: xs1, Xs2: xs2}}
}

func TestMSETAllocateSucceeds(t *testing.T) {
	w := des.NewWorld(4, 8)
	u := NewMSET()
	require.True(t, u.CanIssue())

	// allocEn=1, rows=1, cols=1 -> xs2 = 1 | (1<<1) | (1<<6)
	xs2 := uint64(1) | uint64(1)<<1 | uint64(1)<<6
	require.NoError(t, u.OnExternal(des.Message{Payload: dispatchMSET(0, xs2)}, w))
	require.False(t, u.CanIssue())

	msgs, err := u.OnInternal(w)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	commit := msgs[0].Payload.(frontend.CommitPayload)
	require.Equal(t, uint64(1), commit.Result)
	require.True(t, u.CanIssue())

	pbanks, ok := w.BMT.Pbanks(0)
	require.True(t, ok)
	require.Len(t, pbanks, 1)
}

func TestMSETAllocateExhaustionReportsFailure(t *testing.T) {
	w := des.NewWorld(1, 8)
	w.BMT.Allocate(5, 1) // consume the only bank
	u := NewMSET()

	xs2 := uint64(1) | uint64(1)<<1 | uint64(1)<<6
	require.NoError(t, u.OnExternal(des.Message{Payload: dispatchMSET(0, xs2)}, w))
	msgs, err := u.OnInternal(w)
	require.NoError(t, err)
	require.Equal(t, uint64(0), msgs[0].Payload.(frontend.CommitPayload).Result)
}

func TestMSETRelease(t *testing.T) {
	w := des.NewWorld(4, 8)
	w.BMT.Allocate(2, 1)
	u := NewMSET()

	xs1 := uint64(1) | uint64(2)<<1 // releaseEn=1, vbank=2
	require.NoError(t, u.OnExternal(des.Message{Payload: dispatchMSET(xs1, 0)}, w))
	msgs, err := u.OnInternal(w)
	require.NoError(t, err)
	require.Equal(t, uint64(1), msgs[0].Payload.(frontend.CommitPayload).Result)
	_, mapped := w.BMT.Pbanks(2)
	require.False(t, mapped)
}

func TestMSETRejectsSecondDispatchWhileBusy(t *testing.T) {
	w := des.NewWorld(4, 8)
	u := NewMSET()
	require.NoError(t, u.OnExternal(des.Message{Payload: dispatchMSET(0, 0)}, w))
	err := u.OnExternal(des.Message{Payload: dispatchMSET(0, 0)}, w)
	require.Error(t, err)
}
