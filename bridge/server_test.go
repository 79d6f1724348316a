package bridge

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
)

func TestCmdServerOnExternalWritesCmdResp(t *testing.T) {
	hostSide, simSide := net.Pipe()
	defer hostSide.Close()
	defer simSide.Close()

	s := NewCmdServer(simSide, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, s.OnExternal(des.Message{Payload: frontend.Retired{RobID: 1, Result: 55}}, nil))
	}()

	hdr, err := ReadHeader(hostSide)
	require.NoError(t, err)
	require.Equal(t, uint32(MsgCmdResp), hdr.MsgType)
	var buf [8]byte
	_, err = hostSide.Read(buf[:])
	require.NoError(t, err)
	require.Equal(t, uint64(55), binary.LittleEndian.Uint64(buf[:]))
	<-done
}

func TestCmdServerOnExternalRejectsWrongPayload(t *testing.T) {
	hostSide, simSide := net.Pipe()
	defer hostSide.Close()
	defer simSide.Close()
	s := NewCmdServer(simSide, nil)
	err := s.OnExternal(des.Message{Payload: "not retired"}, nil)
	require.Error(t, err)
}

// stubModel is a bare des.Model that records every external delivery,
// standing in for the decoder in CmdServer.Serve tests.
type stubModel struct {
	name     string
	received []des.Message
}

func (s *stubModel) Name() string { return s.name }
func (s *stubModel) OnExternal(msg des.Message, w *des.World) error {
	s.received = append(s.received, msg)
	return nil
}
func (s *stubModel) OnInternal(w *des.World) ([]des.Message, error) { return nil, nil }
func (s *stubModel) TimeAdvance(delta float64)                      {}
func (s *stubModel) UntilNextEvent() float64                        { return des.Inf }

func writeCmdReq(t *testing.T, w net.Conn, req CmdReq) {
	t.Helper()
	require.NoError(t, WriteHeader(w, MsgCmdReq))
	var buf [24]byte
	binary.LittleEndian.PutUint32(buf[0:4], req.Funct)
	binary.LittleEndian.PutUint64(buf[8:16], req.Xs1)
	binary.LittleEndian.PutUint64(buf[16:24], req.Xs2)
	_, err := w.Write(buf[:])
	require.NoError(t, err)
}

func TestCmdServerServeInjectsDecodedInstruction(t *testing.T) {
	hostSide, simSide := net.Pipe()
	defer hostSide.Close()
	defer simSide.Close()

	world := des.NewWorld(1, 1)
	k := des.NewKernel(world)
	decoder := &stubModel{name: "decoder"}
	k.Register(decoder)

	s := NewCmdServer(simSide, k)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	writeCmdReq(t, hostSide, CmdReq{Funct: frontend.FunctMVIN, Xs1: 7, Xs2: 8})

	deadline := time.Now().Add(2 * time.Second)
	for len(decoder.received) == 0 && time.Now().Before(deadline) {
		require.NoError(t, k.Step())
	}
	require.Len(t, decoder.received, 1)
	raw := decoder.received[0].Payload.(frontend.RawInstruction)
	require.Equal(t, uint32(frontend.FunctMVIN), raw.Funct)
	require.Equal(t, uint64(7), raw.Xs1)
}
