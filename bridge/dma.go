package bridge

import (
	"net"
	"os"
	"sync"

	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/membank"
)

// DMAClient implements units.DMAClient over the DMA-read and DMA-write
// host connections. Its calls are synchronous and block the kernel
// thread until the host responds, per spec.md §5: this is acceptable
// because the host emulator is lock-step with the simulator. A socket
// error here is unrecoverable — spec.md §7 gives no retry path — so it
// is logged at Crit and the process exits.
type DMAClient struct {
	mu        sync.Mutex
	readConn  net.Conn
	writeConn net.Conn
	log       log.Logger
}

// NewDMAClient wraps the two already-accepted DMA connections.
func NewDMAClient(readConn, writeConn net.Conn) *DMAClient {
	return &DMAClient{readConn: readConn, writeConn: writeConn, log: log.New("component", "bridge_dma")}
}

// ReadWord fetches one 128-bit word from the host's DRAM at addr.
func (c *DMAClient) ReadWord(addr uint64) membank.Word128 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := WriteDmaReadReq(c.readConn, DmaReadReq{Size: 16, Addr: addr}); err != nil {
		c.fatal("dma read request failed", "addr", addr, "err", err)
	}
	hdr, err := ReadHeader(c.readConn)
	if err != nil || hdr.MsgType != uint32(MsgDmaReadResp) {
		c.fatal("dma read response malformed", "addr", addr, "err", err)
	}
	resp, err := ReadDmaReadResp(c.readConn)
	if err != nil {
		c.fatal("dma read response truncated", "addr", addr, "err", err)
	}
	return membank.Word128{Lo: resp.DataLo, Hi: resp.DataHi}
}

// WriteWord pushes one 128-bit word to the host's DRAM at addr.
func (c *DMAClient) WriteWord(addr uint64, w membank.Word128) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := DmaWriteReq{Size: 16, Addr: addr, DataLo: w.Lo, DataHi: w.Hi}
	if err := WriteDmaWriteReq(c.writeConn, req); err != nil {
		c.fatal("dma write request failed", "addr", addr, "err", err)
	}
	hdr, err := ReadHeader(c.writeConn)
	if err != nil || hdr.MsgType != uint32(MsgDmaWriteResp) {
		c.fatal("dma write response malformed", "addr", addr, "err", err)
	}
	if _, err := ReadDmaWriteResp(c.writeConn); err != nil {
		c.fatal("dma write response truncated", "addr", addr, "err", err)
	}
}

func (c *DMAClient) fatal(msg string, ctx ...interface{}) {
	c.log.Crit(msg, ctx...)
	os.Exit(1)
}
