// Package coordinator implements the coordinator ("server") side of
// the protocol: accepting worker connections, partitioning the
// keyspace, tracking liveness, and arbitrating the winning candidate.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dzita/distcrack/internal/fsm"
	"github.com/dzita/distcrack/internal/protocol"
	"github.com/dzita/distcrack/internal/xerrors"
)

// Config is the coordinator's immutable configuration, kept separate
// from the live session state on Server.
type Config struct {
	TargetHash         string
	N                  uint64
	WorkSize           uint64
	CheckpointInterval uint64
	Timeout            time.Duration
	SweepInterval      time.Duration
	Logger             *log.Logger
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.New(os.Stderr, "coordinatord: ", log.LstdFlags)
}

// Winner records the first accepted FOUND.
type Winner struct {
	Candidate string
	WorkerID  string
}

// Server is the coordinator's live session state: the keyspace
// cursor, the worker registry, and the winner slot.
type Server struct {
	cfg    Config
	disp   *Dispatcher
	reg    *registry
	logger *log.Logger

	winnerMu sync.Mutex
	winner   *Winner

	done     atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	nextConnID atomic.Uint64

	wg sync.WaitGroup
}

// NewServer constructs a Server ready to Serve. N == 0 is valid: the
// dispatcher starts out already exhausted, so the first worker to
// complete the handshake and reach DISPATCH finds no chunk to hand
// out and immediately drives the server into its STOP-broadcasting
// exhaustion path. Presetting `done` here instead would make
// acceptLoop reject connections before they ever receive HASH, and
// would race Serve's listener-close against a worker still completing
// its handshake.
func NewServer(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		disp:   newDispatcher(cfg.N, cfg.WorkSize),
		reg:    newRegistry(),
		logger: cfg.logger(),
		stopCh: make(chan struct{}),
	}
}

// Winner returns the accepted winning candidate, if any.
func (s *Server) Winner() (Winner, bool) {
	s.winnerMu.Lock()
	defer s.winnerMu.Unlock()
	if s.winner == nil {
		return Winner{}, false
	}
	return *s.winner, true
}

// Progress reports the dispatcher's cursor position for a metrics
// endpoint or operator diagnostics.
func (s *Server) Progress() (next, total uint64) {
	return s.disp.progress()
}

// WorkerCount reports the number of currently registered (not
// necessarily assigned) workers.
func (s *Server) WorkerCount() int {
	return len(s.reg.snapshot())
}

// Serve accepts connections on ln until ctx is canceled, the keyspace
// is exhausted with no assignments outstanding, or a FOUND is
// accepted. It spawns one handler goroutine per connection and a
// background liveness sweeper, and returns once every handler has
// exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLivenessSweeper(sweepCtx)
	}()

	acceptErrCh := make(chan error, 1)
	go func() {
		acceptErrCh <- s.acceptLoop(ctx, ln)
	}()

	select {
	case <-ctx.Done():
		// Operator-requested shutdown: handlers may be blocked reading
		// from workers that will never speak again, so after a
		// best-effort STOP the connections are closed out from under
		// them.
		_ = ln.Close()
		s.broadcastStop()
		s.closeConns()
	case <-s.stopCh:
		_ = ln.Close()
	case err := <-acceptErrCh:
		// Unrecoverable accept failure: tear down every connection so
		// no handler is left blocked on a read.
		s.triggerStop()
		s.broadcastStop()
		s.closeConns()
		s.wg.Wait()
		return err
	}

	<-acceptErrCh
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-s.stopCh:
				return nil
			default:
			}
			return xerrors.New(xerrors.KindSocketLifecycle, err, "accept")
		}
		if s.done.Load() {
			_ = conn.Close()
			continue
		}
		id := fmt.Sprintf("w%d", s.nextConnID.Add(1))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, id, conn)
		}()
	}
}

func (s *Server) triggerStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// claimWinner is the winner slot's compare-and-set: the first FOUND
// wins; later ones are reported as already-lost by the bool return so
// the caller can log-and-discard.
func (s *Server) claimWinner(candidate, workerID string) bool {
	s.winnerMu.Lock()
	defer s.winnerMu.Unlock()
	if s.winner != nil {
		return false
	}
	s.winner = &Winner{Candidate: candidate, WorkerID: workerID}
	return true
}

// checkExhaustion tests the full exhaustion condition: cursor at N,
// no queued tails, and no worker holding a live assignment.
func (s *Server) checkExhaustion() {
	if s.done.Load() {
		return
	}
	if s.disp.exhausted() && !s.reg.anyAssigned() {
		if s.done.CompareAndSwap(false, true) {
			s.logger.Printf("keyspace exhausted, broadcasting STOP")
			s.broadcastStop()
			s.triggerStop()
		}
	}
}

// broadcastStop sends STOP to every registered worker, best effort.
// A failed write just means that worker's own connection is already
// gone; its handler goroutine will observe end-of-stream.
func (s *Server) broadcastStop() {
	for _, r := range s.reg.snapshot() {
		w := protocol.NewWriter(r.Conn)
		_ = w.Write(protocol.Stop())
	}
}

func (s *Server) closeConns() {
	for _, r := range s.reg.snapshot() {
		_ = r.Conn.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, id string, conn net.Conn) {
	defer s.reg.remove(id)

	rec := newRecord(id, conn)
	s.reg.add(rec)

	h := &handlerState{
		srv:    s,
		id:     id,
		conn:   conn,
		rec:    rec,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
	}

	m := &fsm.Machine{
		Table: fsm.Table{
			fsm.Init:         {Perform: h.actionSendHash},
			stateAwaitReady:  {Perform: h.actionAwaitReady},
			stateDispatch:    {Perform: h.actionDispatch},
			stateAwaitResult: {Perform: h.actionAwaitResult},
			stateTerminate:   {Perform: h.actionTerminate},
		},
		OnError: func(_ context.Context, _ any, cause error) {
			s.logger.Printf("%s", xerrors.Line(cause))
		},
		Cleanup: func(_ context.Context, _ any) {
			rec.setState(StateClosed)
			if tail, ok := rec.staleTail(); ok && !s.done.Load() {
				s.disp.pushTail(tail)
			}
			_ = conn.Close()
			s.checkExhaustion()
		},
	}

	_ = m.Run(ctx, h)
}

const (
	stateAwaitReady  fsm.State = "AWAIT_READY"
	stateDispatch    fsm.State = "DISPATCH"
	stateAwaitResult fsm.State = "AWAIT_RESULT"
	stateTerminate   fsm.State = "TERMINATE"
)

// handlerState is the per-connection FSM env: one live assignment at
// a time, held by the registry Record (which validates CHECKPOINT
// bounds and is what the liveness sweeper sees) and copied into the
// local `current` value for the out-of-range diagnostic.
type handlerState struct {
	srv    *Server
	id     string
	conn   net.Conn
	rec    *Record
	reader *protocol.Reader
	writer *protocol.Writer

	current assignment
}

func (h *handlerState) actionSendHash(_ context.Context, _ any) (fsm.State, error) {
	if err := h.writer.Write(protocol.Hash(h.srv.cfg.TargetHash)); err != nil {
		return "", xerrors.New(xerrors.KindIO, err, "send HASH to %s", h.id)
	}
	return stateAwaitReady, nil
}

func (h *handlerState) actionAwaitReady(_ context.Context, _ any) (fsm.State, error) {
	msg, err := h.reader.Next()
	if err != nil {
		return "", xerrors.New(xerrors.KindIO, err, "recv READY from %s", h.id)
	}
	if msg.Kind != protocol.KindReady {
		return "", xerrors.New(xerrors.KindProtocol, nil, "%s: expected READY, got %s", h.id, msg.Kind)
	}
	h.rec.setState(StateIdle)
	return stateDispatch, nil
}

func (h *handlerState) actionDispatch(_ context.Context, _ any) (fsm.State, error) {
	if h.srv.done.Load() {
		return stateTerminate, nil
	}
	a, ok := h.srv.disp.next()
	if !ok {
		h.srv.checkExhaustion()
		return stateTerminate, nil
	}
	h.current = a
	h.rec.setAssignment(a)

	msg := protocol.Work(a.start, a.length, h.srv.cfg.CheckpointInterval, uint32(h.srv.cfg.Timeout/time.Second))
	if err := h.writer.Write(msg); err != nil {
		return "", xerrors.New(xerrors.KindIO, err, "send WORK to %s", h.id)
	}
	return stateAwaitResult, nil
}

func (h *handlerState) actionAwaitResult(_ context.Context, _ any) (fsm.State, error) {
	msg, err := h.reader.Next()
	if err != nil {
		if err == io.EOF {
			return fsm.Cleanup, nil
		}
		return "", xerrors.New(xerrors.KindIO, err, "recv from %s", h.id)
	}

	switch msg.Kind {
	case protocol.KindCheckpoint:
		if !h.rec.recordCheckpoint(msg.Checkpoint) {
			return "", xerrors.New(xerrors.KindRange, nil,
				"%s: checkpoint %d outside assignment [%d,%d)", h.id, msg.Checkpoint, h.current.start, h.current.end())
		}
		return stateAwaitResult, nil

	case protocol.KindDone:
		h.rec.clearAssignment()
		h.srv.checkExhaustion()
		return stateDispatch, nil

	case protocol.KindFound:
		h.rec.clearAssignment()
		if h.srv.claimWinner(msg.Candidate, h.id) {
			fmt.Fprintf(os.Stdout, "%s\n", msg.Candidate)
			h.srv.logger.Printf("%s found %q, broadcasting STOP", h.id, msg.Candidate)
			h.srv.done.Store(true)
			h.srv.broadcastStop()
			h.srv.triggerStop()
		} else {
			h.srv.logger.Printf("%s reported %q, discarded (winner already claimed)", h.id, msg.Candidate)
		}
		return stateTerminate, nil

	default:
		return "", xerrors.New(xerrors.KindProtocol, nil, "%s: unexpected %s while awaiting result", h.id, msg.Kind)
	}
}

func (h *handlerState) actionTerminate(_ context.Context, _ any) (fsm.State, error) {
	_ = h.writer.Write(protocol.Stop())
	return fsm.Cleanup, nil
}
