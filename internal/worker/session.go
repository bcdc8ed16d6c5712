// Package worker implements the worker ("client") side of the
// coordination protocol: a state machine driving one connection
// through handshake, repeated work requests, and the parallel crack
// loop of internal/crack.
package worker

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dzita/distcrack/internal/candidate"
	"github.com/dzita/distcrack/internal/crack"
	"github.com/dzita/distcrack/internal/fsm"
	"github.com/dzita/distcrack/internal/protocol"
	"github.com/dzita/distcrack/internal/xerrors"
)

// Backend resolves the target hash received at handshake into a
// Source/Matcher pair. It is the worker-side half of
// candidate.Backend; cmd/crackw selects one by name from the CLI and
// passes it in here, keeping the FSM itself backend-agnostic.
type Backend = candidate.Backend

// Config is the immutable configuration for one worker session,
// kept separate from the live connection state below.
type Config struct {
	ServerAddr string
	Threads    int
	Grain      uint64
	Backend    Backend
	Params     map[string]string
	DialFunc   func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (c Config) threads() int {
	if c.Threads <= 0 {
		return 1
	}
	return c.Threads
}

func (c Config) dial(ctx context.Context, addr string) (net.Conn, error) {
	if c.DialFunc != nil {
		return c.DialFunc(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// Stats carries the wall and CPU time the worker prints on a clean
// shutdown. Wall covers first WORK receipt through cleanup; CPU sums
// the active time of every cracker goroutine across all units.
type Stats struct {
	Wall time.Duration
	CPU  time.Duration
}

// assignment mirrors the coordinator's work unit.
type assignment struct {
	start, length, checkpoint uint64
	timeout                   time.Duration
}

// state is the live, mutable session state: sockets, cursors, the
// current assignment. FSM actions receive *state as their env.
type state struct {
	cfg Config

	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	wmu    sync.Mutex // work lock: serializes every write to conn

	target  string
	source  candidate.Source
	matcher candidate.Matcher

	current *assignment

	timerArmed bool
	crackStart time.Time
	cpuTotal   time.Duration

	stopped bool // set once STOP (or end-of-stream) observed
	stats   Stats
}

const (
	stateWaitHash fsm.State = "WAIT_HASH"
	stateWaitWork fsm.State = "WAIT_WORK"
	stateCrack    fsm.State = "CRACK"
	stateSendDone fsm.State = "SEND_DONE"
)

// Run drives one worker session to completion: connect, handshake,
// and repeat work requests until STOP (or end-of-stream, treated
// identically) or ctx is canceled. It returns the session Stats and
// the terminal error, if the FSM ended in ERROR.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	st := &state{cfg: cfg}

	m := &fsm.Machine{
		Table: fsm.Table{
			fsm.Init:      {Perform: actionResolveAndConnect},
			stateWaitHash: {Perform: actionWaitHash},
			stateWaitWork: {Perform: actionDispatchOnMessage},
			stateCrack:    {Perform: actionCrack},
			stateSendDone: {Perform: actionSendDoneThenWait},
		},
		OnError: func(_ context.Context, env any, cause error) {
			fmt.Fprintln(logWriter, xerrors.Line(cause))
		},
		Cleanup: func(_ context.Context, env any) {
			s := env.(*state)
			if s.timerArmed {
				s.stats.Wall = time.Since(s.crackStart)
			}
			s.stats.CPU = s.cpuTotal
			if s.conn != nil {
				_ = s.conn.Close()
			}
		},
	}

	err := m.Run(ctx, st)
	return st.stats, err
}

// logWriter is where ERROR diagnostics land; overridable in tests.
var logWriter io.Writer = stderrWriter{}

func actionResolveAndConnect(ctx context.Context, env any) (fsm.State, error) {
	s := env.(*state)
	conn, err := s.cfg.dial(ctx, s.cfg.ServerAddr)
	if err != nil {
		return "", xerrors.New(xerrors.KindSocketLifecycle, err, "connect to %s", s.cfg.ServerAddr)
	}
	s.conn = conn
	s.reader = protocol.NewReader(conn)
	s.writer = protocol.NewWriter(conn)
	return stateWaitHash, nil
}

func actionWaitHash(_ context.Context, env any) (fsm.State, error) {
	s := env.(*state)
	msg, err := s.reader.Next()
	if err != nil {
		if err == io.EOF {
			return "", xerrors.New(xerrors.KindProtocol, err, "connection closed before HASH")
		}
		return "", xerrors.New(xerrors.KindIO, err, "recv HASH")
	}
	if msg.Kind != protocol.KindHash {
		return "", xerrors.New(xerrors.KindProtocol, nil, "expected HASH, got %s", msg.Kind)
	}
	s.target = msg.Hash

	source, matcher, err := s.cfg.Backend.New(s.target, s.cfg.Params)
	if err != nil {
		return "", xerrors.New(xerrors.KindArgument, err, "construct candidate backend")
	}
	s.source = source
	s.matcher = matcher

	if err := s.send(protocol.Ready()); err != nil {
		return "", err
	}
	return stateWaitWork, nil
}

// actionDispatchOnMessage is the WAIT_WORK state's action, reading
// whatever the coordinator sends next: WORK (proceed to CRACK) or
// STOP / end-of-stream (proceed to CLEANUP). It is also what CRACK and
// SEND_DONE loop back into.
func actionDispatchOnMessage(_ context.Context, env any) (fsm.State, error) {
	return dispatchOnMessage(env.(*state))
}

func dispatchOnMessage(s *state) (fsm.State, error) {
	msg, err := s.reader.Next()
	if err != nil {
		if err == io.EOF {
			// Orderly coordinator shutdown: end-of-stream is treated
			// identically to STOP.
			s.stopped = true
			return fsm.Cleanup, nil
		}
		return "", xerrors.New(xerrors.KindIO, err, "recv in WAIT_WORK")
	}

	switch msg.Kind {
	case protocol.KindStop:
		s.stopped = true
		return fsm.Cleanup, nil
	case protocol.KindWork:
		s.current = &assignment{
			start:      msg.Start,
			length:     msg.Len,
			checkpoint: msg.Checkpoint,
			timeout:    time.Duration(msg.Timeout) * time.Second,
		}
		if !s.timerArmed {
			s.timerArmed = true
			s.crackStart = time.Now()
		}
		return stateCrack, nil
	default:
		return "", xerrors.New(xerrors.KindProtocol, nil, "expected WORK or STOP, got %s", msg.Kind)
	}
}

func actionCrack(ctx context.Context, env any) (fsm.State, error) {
	s := env.(*state)
	a := s.current

	runCtx := ctx
	var cancel context.CancelFunc
	if a.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cfg := crack.Config{
		Start:              a.start,
		End:                a.start + a.length,
		CheckpointInterval: a.checkpoint,
		Grain:              s.cfg.Grain,
		Threads:            s.cfg.threads(),
		Source:             s.source,
		Matcher:            s.matcher,
	}
	out, err := crack.Run(runCtx, cfg, (*emitter)(s))
	if err != nil {
		return "", xerrors.New(xerrors.KindIO, err, "crack loop emission")
	}
	s.cpuTotal += out.CPUTime

	if out.Kind == crack.FoundKind {
		// FOUND already sent by the crack loop's emitter; still
		// return to WAIT_WORK to observe the coordinator's STOP.
		return stateWaitWork, nil
	}
	// DoneKind (range exhausted) and TimedOutKind (per-unit deadline
	// hit) both report DONE: a timeout is not fatal to the session,
	// it just means this unit's tail goes unclaimed until the
	// coordinator's liveness sweep reassigns it.
	return stateSendDone, nil
}

func actionSendDoneThenWait(_ context.Context, env any) (fsm.State, error) {
	s := env.(*state)
	if err := s.send(protocol.Done()); err != nil {
		return "", err
	}
	return stateWaitWork, nil
}

// send serializes a write under the work lock: no DONE, FOUND, or
// CHECKPOINT may interleave with another write on the same socket.
func (s *state) send(msg protocol.Message) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.writer.Write(msg); err != nil {
		return xerrors.New(xerrors.KindIO, err, "send %s", msg.Kind)
	}
	return nil
}

// emitter adapts *state to crack.Emitter, routing CHECKPOINT/FOUND
// through the same lock-guarded send path as DONE/READY.
type emitter state

func (e *emitter) Checkpoint(idx uint64) error {
	return (*state)(e).send(protocol.CheckpointMsg(idx))
}

func (e *emitter) Found(cand string) error {
	return (*state)(e).send(protocol.Found(cand))
}

var _ crack.Emitter = (*emitter)(nil)
