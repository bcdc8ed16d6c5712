// Package config holds the validated, immutable configuration values
// for both cmd binaries: two value types with a single Validate entry
// point each, so an invalid CLI input is reported once, fatally,
// before any socket is opened.
package config

import (
	"time"

	"github.com/dzita/distcrack/internal/xerrors"
)

// Coordinator is the validated configuration for cmd/crackd.
type Coordinator struct {
	BindAddr           string
	TargetHash         string
	N                  uint64
	WorkSize           uint64
	CheckpointInterval uint64
	Timeout            time.Duration
	MetricsAddr        string // empty disables the optional status endpoint
}

// Validate checks the coordinator's required inputs: bind address,
// target hash, total keyspace N, per-unit work size, checkpoint
// interval, per-unit timeout.
func (c Coordinator) Validate() error {
	if c.BindAddr == "" {
		return xerrors.New(xerrors.KindArgument, nil, "bind address must not be empty")
	}
	if c.TargetHash == "" {
		return xerrors.New(xerrors.KindArgument, nil, "target hash must not be empty")
	}
	if c.WorkSize == 0 {
		return xerrors.New(xerrors.KindArgument, nil, "work size must be > 0")
	}
	if c.CheckpointInterval == 0 {
		return xerrors.New(xerrors.KindArgument, nil, "checkpoint interval must be > 0")
	}
	if c.Timeout < 0 {
		return xerrors.New(xerrors.KindArgument, nil, "timeout must be >= 0")
	}
	// N == 0 is valid: the session broadcasts STOP immediately.
	return nil
}

// Worker is the validated configuration for cmd/crackw.
type Worker struct {
	ServerAddr string
	Threads    int
	Backend    string
	Params     map[string]string
}

// Validate checks the worker's required inputs: coordinator address
// and port (folded into ServerAddr), thread count.
func (w Worker) Validate() error {
	if w.ServerAddr == "" {
		return xerrors.New(xerrors.KindArgument, nil, "server address must not be empty")
	}
	if w.Threads < 0 {
		return xerrors.New(xerrors.KindArgument, nil, "thread count must be >= 0 (0 selects a default)")
	}
	if w.Backend == "" {
		return xerrors.New(xerrors.KindArgument, nil, "backend must not be empty")
	}
	return nil
}
