// Command crackw is the worker ("client") side of the distributed
// hash-cracking protocol: it connects to a coordinator, receives the
// target hash, and repeatedly requests and cracks work units in
// parallel.
//
// Usage:
//
//	crackw <coordinator-addr> <threads> <backend> [param=value ...]
//
// Argument parsing is manual and positional.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/dzita/distcrack/internal/candidate"
	"github.com/dzita/distcrack/internal/candidate/btcvanity"
	"github.com/dzita/distcrack/internal/candidate/wordlist"
	"github.com/dzita/distcrack/internal/config"
	"github.com/dzita/distcrack/internal/worker"
	"github.com/dzita/distcrack/internal/xerrors"
)

// backends is the registry of candidate.Backend implementations a
// worker can select by name.
var backends = map[string]candidate.Backend{
	"wordlist":  wordlist.Backend{},
	"btcvanity": btcvanity.Backend{},
}

func usage() {
	fmt.Println("Usage: crackw <coordinator-addr> <threads> <backend> [param=value ...]")
	fmt.Println()
	fmt.Println("Arguments:")
	fmt.Println("  coordinator-addr - address:port to connect to, e.g. 127.0.0.1:9000")
	fmt.Println("  threads          - cracker goroutines per work unit (0 selects a CPU-derived default)")
	fmt.Println("  backend          - one of: wordlist, btcvanity")
	fmt.Println("  param=value      - backend-specific parameters (e.g. charset=..., length=...)")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  crackw 127.0.0.1:9000 0 wordlist length=6")
}

func main() {
	if len(os.Args) < 4 {
		usage()
		os.Exit(1)
	}

	threads, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fail(xerrors.New(xerrors.KindArgument, err, "invalid threads %q", os.Args[2]))
	}

	backendName := os.Args[3]
	backend, ok := backends[backendName]
	if !ok {
		fail(xerrors.New(xerrors.KindArgument, nil, "unknown backend %q (want one of wordlist, btcvanity)", backendName))
	}

	params := parseParams(os.Args[4:])

	cfg := config.Worker{
		ServerAddr: os.Args[1],
		Threads:    threads,
		Backend:    backendName,
		Params:     params,
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	effectiveThreads := threads
	if effectiveThreads <= 0 {
		effectiveThreads = cpuid.CPU.LogicalCores
		if effectiveThreads <= 0 {
			effectiveThreads = 1
		}
	}

	fmt.Printf("crackw: connecting to %s, backend=%s, threads=%d (cpu=%s, simd=%s)\n",
		cfg.ServerAddr, backendName, effectiveThreads, cpuid.CPU.BrandName, simdLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := worker.Run(ctx, worker.Config{
		ServerAddr: cfg.ServerAddr,
		Threads:    effectiveThreads,
		Backend:    backend,
		Params:     params,
	})
	if err != nil {
		fail(err)
	}

	fmt.Printf("crackw: session finished, wall=%s cpu=%s\n", stats.Wall, stats.CPU)
}

// simdLevel reports the best SIMD tier sha256-simd's CPU detection
// will actually exercise, echoed in the startup banner so an operator
// can tell at a glance whether the wordlist backend's hot loop is
// running accelerated.
func simdLevel() string {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX2):
		return "AVX2"
	case cpuid.CPU.Supports(cpuid.AVX):
		return "AVX"
	case cpuid.CPU.Supports(cpuid.SSE4):
		return "SSE4"
	default:
		return "generic"
	}
}

// parseParams turns "key=value" CLI tail arguments into the
// map[string]string every candidate.Backend.New accepts. Arguments
// without an '=' are ignored rather than rejected, since the set of
// recognized keys is backend-specific and not known here.
func parseParams(args []string) map[string]string {
	params := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		params[k] = v
	}
	return params
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, xerrors.Line(err))
	os.Exit(1)
}
