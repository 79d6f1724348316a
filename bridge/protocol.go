// Package bridge implements the host wire protocol: three TCP
// connections (command, DMA-read, DMA-write) carrying fixed-layout,
// little-endian, packed records prefixed by an 8-byte header
// (spec.md §6).
package bridge

import (
	"encoding/binary"
	"io"

	"github.com/rvnpu/corenpu/common"
)

// MsgType discriminates a wire record.
type MsgType uint32

const (
	MsgCmdReq      MsgType = 0
	MsgCmdResp     MsgType = 1
	MsgDmaReadReq  MsgType = 2
	MsgDmaReadResp MsgType = 3
	MsgDmaWriteReq MsgType = 4
	MsgDmaWriteResp MsgType = 5
)

// Header is the 8-byte envelope prefixing every record.
type Header struct {
	MsgType  uint32
	Reserved uint32
}

// CmdReq is the host's instruction-forwarding record.
type CmdReq struct {
	Funct uint32
	_pad  uint32
	Xs1   uint64
	Xs2   uint64
}

// CmdResp answers exactly one CmdReq with the committed result word.
type CmdResp struct {
	Result uint64
}

// DmaReadReq asks the host for size bytes at addr.
type DmaReadReq struct {
	Size uint32
	_pad uint32
	Addr uint64
}

// DmaReadResp carries one 128-bit word back, split lo/hi.
type DmaReadResp struct {
	DataLo uint64
	DataHi uint64
}

// DmaWriteReq pushes one 128-bit word to the host at addr.
type DmaWriteReq struct {
	Size   uint32
	_pad   uint32
	Addr   uint64
	DataLo uint64
	DataHi uint64
}

// DmaWriteResp acknowledges a DmaWriteReq.
type DmaWriteResp struct {
	Reserved uint64
}

// ReadHeader decodes the 8-byte record header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, common.NewProtocolError("bridge: short header read: %v", err)
	}
	return Header{
		MsgType:  binary.LittleEndian.Uint32(buf[0:4]),
		Reserved: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// WriteHeader encodes a header carrying msgType (reserved field zero) to w.
func WriteHeader(w io.Writer, msgType MsgType) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(msgType))
	_, err := w.Write(buf[:])
	return err
}

// ReadCmdReq decodes a CmdReq body (the header must already be consumed).
func ReadCmdReq(r io.Reader) (CmdReq, error) {
	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CmdReq{}, common.NewProtocolError("bridge: short CmdReq read: %v", err)
	}
	return CmdReq{
		Funct: binary.LittleEndian.Uint32(buf[0:4]),
		Xs1:   binary.LittleEndian.Uint64(buf[8:16]),
		Xs2:   binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// WriteCmdResp writes a CmdResp record (header + body) to w.
func WriteCmdResp(w io.Writer, resp CmdResp) error {
	if err := WriteHeader(w, MsgCmdResp); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], resp.Result)
	_, err := w.Write(buf[:])
	return err
}

// WriteDmaReadReq writes a DmaReadReq record to w.
func WriteDmaReadReq(w io.Writer, req DmaReadReq) error {
	if err := WriteHeader(w, MsgDmaReadReq); err != nil {
		return err
	}
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], req.Size)
	binary.LittleEndian.PutUint64(buf[8:16], req.Addr)
	_, err := w.Write(buf[:])
	return err
}

// ReadDmaReadResp decodes a DmaReadResp body.
func ReadDmaReadResp(r io.Reader) (DmaReadResp, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DmaReadResp{}, common.NewProtocolError("bridge: short DmaReadResp read: %v", err)
	}
	return DmaReadResp{
		DataLo: binary.LittleEndian.Uint64(buf[0:8]),
		DataHi: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// WriteDmaWriteReq writes a DmaWriteReq record to w.
func WriteDmaWriteReq(w io.Writer, req DmaWriteReq) error {
	if err := WriteHeader(w, MsgDmaWriteReq); err != nil {
		return err
	}
	var buf [32]byte
	binary.LittleEndian.PutUint32(buf[0:4], req.Size)
	binary.LittleEndian.PutUint64(buf[8:16], req.Addr)
	binary.LittleEndian.PutUint64(buf[16:24], req.DataLo)
	binary.LittleEndian.PutUint64(buf[24:32], req.DataHi)
	_, err := w.Write(buf[:])
	return err
}

// ReadDmaWriteResp decodes a DmaWriteResp body.
func ReadDmaWriteResp(r io.Reader) (DmaWriteResp, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DmaWriteResp{}, common.NewProtocolError("bridge: short DmaWriteResp read: %v", err)
	}
	return DmaWriteResp{Reserved: binary.LittleEndian.Uint64(buf[:])}, nil
}
