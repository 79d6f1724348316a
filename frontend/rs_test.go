package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvnpu/corenpu/des"
)

func TestRSForwardsToWiredPortWhenUnitCanIssue(t *testing.T) {
	canIssue := map[DomainID]func() bool{
		DomainVector: func() bool { return true },
	}
	s := NewReservationStation(canIssue)
	require.True(t, s.Ready())
	require.NoError(t, s.OnExternal(des.Message{Payload: Dispatched{RobID: 1, Instruction: Instruction{Domain: DomainVector}}}, nil))
	require.False(t, s.Ready())

	msgs, err := s.OnInternal(nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, PortToVector, msgs[0].SourcePort)
	require.True(t, s.Ready())
}

func TestRSHoldsWhileUnitCannotIssue(t *testing.T) {
	canIssue := false
	s := NewReservationStation(map[DomainID]func() bool{
		DomainMSET: func() bool { return canIssue },
	})
	require.NoError(t, s.OnExternal(des.Message{Payload: Dispatched{RobID: 1, Instruction: Instruction{Domain: DomainMSET}}}, nil))

	msgs, err := s.OnInternal(nil)
	require.NoError(t, err)
	require.Nil(t, msgs)
	require.Equal(t, float64(1), s.UntilNextEvent())

	canIssue = true
	msgs, err = s.OnInternal(nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, PortToMSET, msgs[0].SourcePort)
}

func TestRSRejectsDispatchWhileBufferOccupied(t *testing.T) {
	s := NewReservationStation(map[DomainID]func() bool{DomainMSET: func() bool { return false }})
	require.NoError(t, s.OnExternal(des.Message{Payload: Dispatched{RobID: 1, Instruction: Instruction{Domain: DomainMSET}}}, nil))
	err := s.OnExternal(des.Message{Payload: Dispatched{RobID: 2, Instruction: Instruction{Domain: DomainMSET}}}, nil)
	require.Error(t, err)
}

func TestRSErrorsOnUnwiredDomain(t *testing.T) {
	s := NewReservationStation(map[DomainID]func() bool{})
	require.NoError(t, s.OnExternal(des.Message{Payload: Dispatched{RobID: 1, Instruction: Instruction{Domain: DomainSystolic}}}, nil))
	_, err := s.OnInternal(nil)
	require.Error(t, err)
}

func TestRSIdleWhenEmpty(t *testing.T) {
	s := NewReservationStation(map[DomainID]func() bool{})
	msgs, err := s.OnInternal(nil)
	require.NoError(t, err)
	require.Nil(t, msgs)
	require.Equal(t, des.Inf, s.UntilNextEvent())
}
