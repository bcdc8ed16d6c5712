package coordinator

import (
	"context"
	"time"
)

const defaultSweepInterval = 5 * time.Second

func (s *Server) sweepInterval() time.Duration {
	if s.cfg.SweepInterval > 0 {
		return s.cfg.SweepInterval
	}
	return defaultSweepInterval
}

// runLivenessSweeper evicts, on a ticker, any worker whose last
// checkpoint is older than 2x the per-unit timeout,
// closing its connection and pushing its un-progressed tail onto the
// reassignment queue. Eviction happens by closing the connection:
// the handler goroutine's blocked Reader.Next() observes the closed
// socket and runs Cleanup itself, keeping connection teardown in one
// place.
func (s *Server) runLivenessSweeper(ctx context.Context) {
	if s.cfg.Timeout <= 0 {
		return
	}
	threshold := 2 * s.cfg.Timeout

	ticker := time.NewTicker(s.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.evictStale(now, threshold)
		}
	}
}

func (s *Server) evictStale(now time.Time, threshold time.Duration) {
	evicted := false
	for _, r := range s.reg.snapshot() {
		if r.State() != StateAssigned {
			continue
		}
		if !r.isStale(now, threshold) {
			continue
		}
		if tail, ok := r.staleTail(); ok {
			s.disp.pushTail(tail)
		}
		r.clearAssignment()
		_ = r.Conn.Close()
		s.logger.Printf("evicted stale worker %s (no checkpoint for > %s)", r.ID, threshold)
		evicted = true
	}
	if evicted {
		s.checkExhaustion()
	}
}
