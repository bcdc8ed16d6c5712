// Command crackd is the coordinator ("server") side of the
// distributed hash-cracking protocol: it owns the keyspace cursor,
// accepts worker connections, and arbitrates the winning candidate.
//
// Usage:
//
//	crackd <bind-addr> <target-hash> <keyspace-n> <work-size> <checkpoint-interval> <timeout-seconds> [metrics-addr]
//
// Argument parsing is manual and positional.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dzita/distcrack/internal/config"
	"github.com/dzita/distcrack/internal/coordinator"
	"github.com/dzita/distcrack/internal/metrics"
	"github.com/dzita/distcrack/internal/xerrors"
)

func usage() {
	fmt.Println("Usage: crackd <bind-addr> <target-hash> <keyspace-n> <work-size> <checkpoint-interval> <timeout-seconds> [metrics-addr]")
	fmt.Println()
	fmt.Println("Arguments:")
	fmt.Println("  bind-addr            - address to listen on, e.g. :9000")
	fmt.Println("  target-hash          - hash the candidate search is looking for")
	fmt.Println("  keyspace-n           - total number of indices in the search space")
	fmt.Println("  work-size            - indices handed to a worker per WORK message")
	fmt.Println("  checkpoint-interval  - indices between CHECKPOINT reports")
	fmt.Println("  timeout-seconds      - per-unit deadline before reassignment (0 disables)")
	fmt.Println("  metrics-addr         - optional: address for the read-only /status endpoint")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  crackd :9000 5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8 1000000 5000 500 30")
}

func main() {
	if len(os.Args) != 7 && len(os.Args) != 8 {
		usage()
		os.Exit(1)
	}

	n, err := strconv.ParseUint(os.Args[3], 10, 64)
	if err != nil {
		fail(xerrors.New(xerrors.KindArgument, err, "invalid keyspace-n %q", os.Args[3]))
	}
	workSize, err := strconv.ParseUint(os.Args[4], 10, 64)
	if err != nil {
		fail(xerrors.New(xerrors.KindArgument, err, "invalid work-size %q", os.Args[4]))
	}
	checkpoint, err := strconv.ParseUint(os.Args[5], 10, 64)
	if err != nil {
		fail(xerrors.New(xerrors.KindArgument, err, "invalid checkpoint-interval %q", os.Args[5]))
	}
	timeoutSec, err := strconv.ParseUint(os.Args[6], 10, 64)
	if err != nil {
		fail(xerrors.New(xerrors.KindArgument, err, "invalid timeout-seconds %q", os.Args[6]))
	}
	metricsAddr := ""
	if len(os.Args) == 8 {
		metricsAddr = os.Args[7]
	}

	cfg := config.Coordinator{
		BindAddr:           os.Args[1],
		TargetHash:         os.Args[2],
		N:                  n,
		WorkSize:           workSize,
		CheckpointInterval: checkpoint,
		Timeout:            time.Duration(timeoutSec) * time.Second,
		MetricsAddr:        metricsAddr,
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(os.Stderr, "crackd: ", log.LstdFlags)

	srv := coordinator.NewServer(coordinator.Config{
		TargetHash:         cfg.TargetHash,
		N:                  cfg.N,
		WorkSize:           cfg.WorkSize,
		CheckpointInterval: cfg.CheckpointInterval,
		Timeout:            cfg.Timeout,
		Logger:             logger,
	})

	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		fail(xerrors.New(xerrors.KindSocketLifecycle, err, "listen on %s", cfg.BindAddr))
	}

	if cfg.MetricsAddr != "" {
		startMetrics(cfg.MetricsAddr, srv, logger)
	}

	logger.Printf("listening on %s, keyspace=%d work-size=%d", cfg.BindAddr, cfg.N, cfg.WorkSize)

	if err := srv.Serve(ctx, ln); err != nil {
		fail(err)
	}

	if w, ok := srv.Winner(); ok {
		fmt.Println(w.Candidate)
		return
	}
	logger.Printf("keyspace exhausted, no match found")
}

// serverSource adapts *coordinator.Server's Winner() (Winner, bool)
// to metrics.Source's Winner() (string, string, bool): the two
// packages deliberately don't share a type so internal/metrics never
// imports internal/coordinator.
type serverSource struct{ srv *coordinator.Server }

func (s serverSource) WorkerCount() int               { return s.srv.WorkerCount() }
func (s serverSource) Progress() (next, total uint64) { return s.srv.Progress() }
func (s serverSource) Winner() (string, string, bool) {
	w, ok := s.srv.Winner()
	return w.Candidate, w.WorkerID, ok
}

func startMetrics(addr string, srv *coordinator.Server, logger *log.Logger) {
	h := metrics.Handler(serverSource{srv: srv}, time.Now())
	go func() {
		logger.Printf("metrics endpoint on %s", addr)
		if err := (&http.Server{Addr: addr, Handler: h}).ListenAndServe(); err != nil {
			logger.Printf("metrics endpoint stopped: %v", err)
		}
	}()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, xerrors.Line(err))
	os.Exit(1)
}
