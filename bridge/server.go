package bridge

import (
	"context"
	"net"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rvnpu/corenpu/common"
	"github.com/rvnpu/corenpu/des"
	"github.com/rvnpu/corenpu/frontend"
	"github.com/rvnpu/corenpu/log"
)

// Listeners holds the three accepted TCP listeners (spec.md §4.2).
type Listeners struct {
	Cmd      net.Listener
	DMARead  net.Listener
	DMAWrite net.Listener
}

// Listen opens the three host-bridge ports.
func Listen(cmdAddr, dmaReadAddr, dmaWriteAddr string) (*Listeners, error) {
	cmdLn, err := net.Listen("tcp", cmdAddr)
	if err != nil {
		return nil, err
	}
	readLn, err := net.Listen("tcp", dmaReadAddr)
	if err != nil {
		cmdLn.Close()
		return nil, err
	}
	writeLn, err := net.Listen("tcp", dmaWriteAddr)
	if err != nil {
		cmdLn.Close()
		readLn.Close()
		return nil, err
	}
	return &Listeners{Cmd: cmdLn, DMARead: readLn, DMAWrite: writeLn}, nil
}

// AcceptAll accepts exactly one connection per port concurrently — the
// host emulator is a single lock-step client connecting on all three —
// under an errgroup so a failure on any socket aborts the others.
func (l *Listeners) AcceptAll(ctx context.Context) (cmdConn, readConn, writeConn net.Conn, err error) {
	g, _ := errgroup.WithContext(ctx)
	accept := func(ln net.Listener, conn *net.Conn) func() error {
		return func() error {
			c, e := ln.Accept()
			if e != nil {
				l.Close() // unblocks the other pending Accept calls
				return e
			}
			*conn = c
			return nil
		}
	}
	g.Go(accept(l.Cmd, &cmdConn))
	g.Go(accept(l.DMARead, &readConn))
	g.Go(accept(l.DMAWrite, &writeConn))
	if err = g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return cmdConn, readConn, writeConn, nil
}

// Close idempotently shuts all three listeners down.
func (l *Listeners) Close() {
	l.Cmd.Close()
	l.DMARead.Close()
	l.DMAWrite.Close()
}

// CmdServer is the command-port model. Its Serve loop runs on its own
// goroutine, injecting decoded instructions into the kernel; its
// on_external receives each retirement and writes the matching CmdResp
// back on the connection. The ROB retires strictly in rob_id order and
// rob_ids are assigned in request order, so FIFO write order already
// matches FIFO retire order — no per-request correlation table needed
// (spec.md §8, invariant 5).
type CmdServer struct {
	conn      net.Conn
	kernel    *des.Kernel
	sessionID uuid.UUID
	log       log.Logger
}

// NewCmdServer wraps an accepted command connection, tagging it with a
// session id used as a log correlation id.
func NewCmdServer(conn net.Conn, kernel *des.Kernel) *CmdServer {
	id := uuid.New()
	return &CmdServer{conn: conn, kernel: kernel, sessionID: id, log: log.New("component", "bridge_cmd", "session", id.String())}
}

func (s *CmdServer) Name() string { return "bridge_cmd" }

func (s *CmdServer) OnExternal(msg des.Message, w *des.World) error {
	ret, ok := msg.Payload.(frontend.Retired)
	if !ok {
		return common.NewProtocolError("bridge_cmd: expected Retired payload, got %T", msg.Payload)
	}
	if err := WriteCmdResp(s.conn, CmdResp{Result: ret.Result}); err != nil {
		s.log.Error("failed writing cmd response", "rob_id", ret.RobID, "err", err)
	}
	return nil
}

func (s *CmdServer) OnInternal(w *des.World) ([]des.Message, error) { return nil, nil }

func (s *CmdServer) TimeAdvance(delta float64) {}

func (s *CmdServer) UntilNextEvent() float64 { return des.Inf }

// Serve reads CmdReq records off the connection until it errors or
// closes, injecting each as a RawInstruction targeting the decoder.
func (s *CmdServer) Serve(ctx context.Context) error {
	s.log.Info("command session started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		hdr, err := ReadHeader(s.conn)
		if err != nil {
			return err
		}
		if hdr.MsgType != uint32(MsgCmdReq) {
			return common.NewProtocolError("bridge_cmd: unexpected message type %d", hdr.MsgType)
		}
		req, err := ReadCmdReq(s.conn)
		if err != nil {
			return err
		}
		s.kernel.Inject("decoder", frontend.PortIn, frontend.RawInstruction{Funct: req.Funct, Xs1: req.Xs1, Xs2: req.Xs2})
	}
}
