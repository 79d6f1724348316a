package bridge

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvnpu/corenpu/membank"
)

func TestDMAClientReadWordRoundTrip(t *testing.T) {
	hostSide, simSide := net.Pipe()
	defer hostSide.Close()
	defer simSide.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		hdr, err := ReadHeader(hostSide)
		require.NoError(t, err)
		require.Equal(t, uint32(MsgDmaReadReq), hdr.MsgType)
		var reqBody [16]byte
		_, err = hostSide.Read(reqBody[:])
		require.NoError(t, err)
		require.NoError(t, WriteHeader(hostSide, MsgDmaReadResp))
		var body [16]byte
		body[0] = 7
		_, err = hostSide.Write(body[:])
		require.NoError(t, err)
	}()

	client := NewDMAClient(simSide, nil)
	got := client.ReadWord(0x40)
	<-done
	require.Equal(t, membank.Word128{Lo: 7}, got)
}

func TestDMAClientWriteWordRoundTrip(t *testing.T) {
	hostSide, simSide := net.Pipe()
	defer hostSide.Close()
	defer simSide.Close()

	done := make(chan struct{})
	var gotAddr uint64
	var gotWord membank.Word128
	go func() {
		defer close(done)
		hdr, err := ReadHeader(hostSide)
		require.NoError(t, err)
		require.Equal(t, uint32(MsgDmaWriteReq), hdr.MsgType)
		var buf [32]byte
		_, err = hostSide.Read(buf[:])
		require.NoError(t, err)
		gotAddr = uint64(buf[8]) // low byte of the little-endian Addr field is enough to assert on
		gotWord = membank.Word128{Lo: uint64(buf[16])}
		require.NoError(t, WriteHeader(hostSide, MsgDmaWriteResp))
		var respBody [8]byte
		_, err = hostSide.Write(respBody[:])
		require.NoError(t, err)
	}()

	client := NewDMAClient(nil, simSide)
	client.WriteWord(3, membank.Word128{Lo: 9})
	<-done
	require.Equal(t, uint64(3), gotAddr)
	require.Equal(t, membank.Word128{Lo: 9}, gotWord)
}
