package worker

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dzita/distcrack/internal/candidate"
)

// intBackend is a minimal candidate.Backend for exercising the session
// FSM without pulling in the real wordlist/btcvanity pipelines: the
// candidate for index i is its decimal string, and the target is
// matched by exact string equality.
type intBackend struct{}

func (intBackend) Name() string { return "int" }

func (intBackend) New(target string, _ map[string]string) (candidate.Source, candidate.Matcher, error) {
	src := candidate.SourceFunc(func(i uint64) []byte {
		return []byte(strconv.FormatUint(i, 10))
	})
	m := candidate.MatcherFunc(func(c []byte) bool { return string(c) == target })
	return src, m, nil
}

func dialPair() (clientDial func(ctx context.Context, network, addr string) (net.Conn, error), serverConn net.Conn) {
	client, server := net.Pipe()
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return client, nil
	}, server
}

func TestSessionHappyPathFindsMatch(t *testing.T) {
	dial, server := dialPair()
	defer server.Close()

	cfg := Config{
		ServerAddr: "ignored:0",
		Threads:    2,
		Grain:      4,
		Backend:    intBackend{},
		DialFunc:   dial,
	}

	done := make(chan struct{})
	var stats Stats
	var runErr error
	go func() {
		stats, runErr = Run(context.Background(), cfg)
		close(done)
	}()

	br := bufio.NewReader(server)

	mustWrite(t, server, "HASH 42\n")
	mustReadLine(t, br, "READY")

	mustWrite(t, server, "WORK 0 1000 100 0\n")

	// Drain checkpoints until FOUND arrives.
	for {
		line := mustReadLineRaw(t, br)
		if strings.HasPrefix(line, "FOUND") {
			if line != "FOUND 42" {
				t.Fatalf("got %q, want FOUND 42", line)
			}
			break
		}
		if !strings.HasPrefix(line, "CHECKPOINT") {
			t.Fatalf("unexpected line while waiting for FOUND: %q", line)
		}
	}

	mustWrite(t, server, "STOP\n")
	server.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish after STOP")
	}
	if runErr != nil {
		t.Fatalf("Run returned error: %v", runErr)
	}
	if stats.Wall <= 0 {
		t.Error("expected a positive wall-clock duration once CRACK has run")
	}
}

func TestSessionDoneThenSecondWorkUnit(t *testing.T) {
	dial, server := dialPair()
	defer server.Close()

	cfg := Config{
		ServerAddr: "ignored:0",
		Threads:    1,
		Grain:      2,
		Backend:    intBackend{},
		DialFunc:   dial,
	}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), cfg)
		close(done)
	}()

	br := bufio.NewReader(server)
	mustWrite(t, server, "HASH nomatch\n")
	mustReadLine(t, br, "READY")

	// A small unit that cannot match; expect DONE.
	mustWrite(t, server, "WORK 0 10 5 0\n")
	for {
		line := mustReadLineRaw(t, br)
		if line == "DONE" {
			break
		}
		if !strings.HasPrefix(line, "CHECKPOINT") {
			t.Fatalf("unexpected line waiting for DONE: %q", line)
		}
	}

	// Second unit, then STOP.
	mustWrite(t, server, "WORK 10 10 5 0\n")
	for {
		line := mustReadLineRaw(t, br)
		if line == "DONE" {
			break
		}
		if !strings.HasPrefix(line, "CHECKPOINT") {
			t.Fatalf("unexpected line waiting for second DONE: %q", line)
		}
	}

	mustWrite(t, server, "STOP\n")
	server.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish after STOP")
	}
}

func TestSessionEndOfStreamTreatedAsStop(t *testing.T) {
	dial, server := dialPair()

	cfg := Config{
		ServerAddr: "ignored:0",
		Threads:    1,
		Backend:    intBackend{},
		DialFunc:   dial,
	}

	done := make(chan struct{})
	var runErr error
	go func() {
		_, runErr = Run(context.Background(), cfg)
		close(done)
	}()

	br := bufio.NewReader(server)
	mustWrite(t, server, "HASH nomatch\n")
	mustReadLine(t, br, "READY")

	// Close without a STOP: the worker must treat this as STOP, not
	// an error.
	server.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish after peer closed without STOP")
	}
	if runErr != nil {
		t.Fatalf("Run returned error on end-of-stream-as-STOP: %v", runErr)
	}
}

func mustWrite(t *testing.T, conn net.Conn, s string) {
	t.Helper()
	if _, err := conn.Write([]byte(s)); err != nil {
		t.Fatalf("write %q: %v", s, err)
	}
}

func mustReadLine(t *testing.T, br *bufio.Reader, want string) {
	t.Helper()
	got := mustReadLineRaw(t, br)
	if got != want {
		t.Fatalf("got line %q, want %q", got, want)
	}
}

func mustReadLineRaw(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}
