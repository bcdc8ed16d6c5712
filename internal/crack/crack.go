// Package crack implements the parallel scan of one work unit: T
// goroutines sharing an atomically-claimed cursor over the unit's
// index range, cooperative early termination on match or timeout, and
// serialized checkpoint/found emission onto the single control socket.
package crack

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dzita/distcrack/internal/candidate"
)

// DefaultGrain is the sub-chunk size a single goroutine claims per
// atomic fetch-add.
const DefaultGrain = 4096

// Emitter is the worker's single control socket, abstracted so the
// crack loop never touches net.Conn directly. Implementations must be
// safe to call concurrently: Run serializes calls internally via its
// own lock, but the interface contract does not assume that, since a
// future caller might share an Emitter across more than one Run.
type Emitter interface {
	Checkpoint(idx uint64) error
	Found(candidate string) error
}

// Config describes one work unit's crack loop.
type Config struct {
	Start, End         uint64 // half-open range [Start, End)
	CheckpointInterval uint64
	Grain              uint64
	Threads            int
	Source             candidate.Source
	Matcher            candidate.Matcher
}

func (c Config) grain() uint64 {
	if c.Grain == 0 {
		return DefaultGrain
	}
	return c.Grain
}

func (c Config) threads() int {
	if c.Threads <= 0 {
		return 1
	}
	return c.Threads
}

// Outcome is the result of one Run call.
type Outcome struct {
	// Kind is FoundKind, DoneKind, or TimedOutKind.
	Kind OutcomeKind
	// Candidate and Index are set only for FoundKind.
	Candidate string
	Index     uint64
	// LastCheckpoint is the highest checkpoint index actually emitted
	// during this run (meaningful for DoneKind and TimedOutKind; the
	// coordinator uses it to size a reassignment tail on timeout).
	// HasCheckpoint is false if Run returned before any checkpoint
	// boundary was crossed.
	LastCheckpoint uint64
	HasCheckpoint  bool
	// CPUTime sums the active time every cracker goroutine spent
	// between spawn and exit, a proxy for CPU-seconds, since Go does
	// not expose per-goroutine rusage.
	CPUTime time.Duration
}

// OutcomeKind discriminates Outcome.
type OutcomeKind int

const (
	DoneKind OutcomeKind = iota
	FoundKind
	TimedOutKind
)

type sharedState struct {
	cursor       atomic.Uint64
	stop         atomic.Bool
	mu           sync.Mutex // work lock: serializes every write to Emitter
	lastEmitted  int64      // guarded by mu; sentinel Start-1 until the first checkpoint
	matchOnce    sync.Once
	matchedIdx   uint64
	matchedCand  string
	matched      atomic.Bool
	firstErrOnce sync.Once
	firstErr     error
	cpuNanos     atomic.Int64
}

// Run spawns cfg.threads() goroutines that race to exhaust
// [cfg.Start, cfg.End), evaluating each claimed index against
// cfg.Matcher via cfg.Source, emitting CHECKPOINT boundaries and a
// FOUND on match through emit. Run blocks until every goroutine has
// exited (match found, range exhausted, ctx canceled, or an Emitter
// call failed) and returns the unit's outcome.
//
// ctx's deadline (if any) is the per-unit timeout: when it fires,
// every goroutine stops claiming new chunks (cooperatively, same as a
// match) and Run returns TimedOutKind instead of propagating
// ctx.Err(); a timeout is not fatal to the session.
func Run(ctx context.Context, cfg Config, emit Emitter) (Outcome, error) {
	if cfg.Start >= cfg.End {
		return Outcome{Kind: DoneKind}, nil
	}

	st := &sharedState{}
	st.cursor.Store(cfg.Start)
	st.lastEmitted = int64(cfg.Start) - 1

	var wg sync.WaitGroup
	n := cfg.threads()
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			start := time.Now()
			runWorker(ctx, cfg, st, emit)
			st.cpuNanos.Add(int64(time.Since(start)))
		}()
	}
	wg.Wait()

	if st.firstErr != nil {
		return Outcome{}, st.firstErr
	}

	out := Outcome{CPUTime: time.Duration(st.cpuNanos.Load())}
	if last := st.lastEmitted; last >= int64(cfg.Start) {
		out.HasCheckpoint = true
		out.LastCheckpoint = uint64(last)
	}

	if st.matched.Load() {
		out.Kind = FoundKind
		out.Candidate = st.matchedCand
		out.Index = st.matchedIdx
		return out, nil
	}
	if ctx.Err() != nil {
		out.Kind = TimedOutKind
		return out, nil
	}
	out.Kind = DoneKind
	return out, nil
}

func runWorker(ctx context.Context, cfg Config, st *sharedState, emit Emitter) {
	grain := cfg.grain()
	k := cfg.CheckpointInterval

	for {
		if st.stop.Load() || ctx.Err() != nil {
			return
		}

		i := st.cursor.Add(grain) - grain
		if i >= cfg.End {
			return
		}
		chunkEnd := i + grain
		if chunkEnd > cfg.End {
			chunkEnd = cfg.End
		}

		if k > 0 {
			reportCheckpointBoundary(st, emit, i, k, cfg.Start)
			if st.stop.Load() {
				return
			}
		}

		for j := i; j < chunkEnd; j++ {
			if st.stop.Load() || ctx.Err() != nil {
				return
			}
			c := cfg.Source.Candidate(j)
			if cfg.Matcher.Match(c) {
				claimMatch(st, emit, j, string(c))
				return
			}
		}
	}
}

// reportCheckpointBoundary emits CHECKPOINT <boundary> at most once
// per boundary crossed, and only in increasing order, regardless of
// which goroutine gets there first or how claims interleave. The
// compare and the emission happen under the same lock, so two
// goroutines can never publish boundaries out of order, and nothing
// is emitted once a match has claimed the socket.
func reportCheckpointBoundary(st *sharedState, emit Emitter, i, k, start uint64) {
	boundary := i - i%k
	if boundary < start {
		boundary = start
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if int64(boundary) <= st.lastEmitted || st.stop.Load() {
		return
	}
	if err := emit.Checkpoint(boundary); err != nil {
		st.reportErr(err)
		return
	}
	st.lastEmitted = int64(boundary)
}

func claimMatch(st *sharedState, emit Emitter, idx uint64, cand string) {
	won := false
	st.matchOnce.Do(func() {
		won = true
		st.matchedIdx = idx
		st.matchedCand = cand
	})
	if !won {
		return
	}
	st.stop.Store(true)
	st.mu.Lock()
	err := emit.Found(cand)
	st.mu.Unlock()
	if err != nil {
		st.reportErr(err)
		return
	}
	st.matched.Store(true)
}

func (st *sharedState) reportErr(err error) {
	st.firstErrOnce.Do(func() {
		st.firstErr = err
	})
	st.stop.Store(true)
}
