package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []Message{
		Hash("deadbeef"),
		Ready(),
		Work(0, 100, 1000, 30),
		Work(987654321, 123456, 5000, 600),
		Stop(),
		CheckpointMsg(42),
		CheckpointMsg(0),
		Done(),
		Found("hunter2"),
	}

	for _, m := range cases {
		encoded := m.Encode()
		line := strings.TrimSuffix(encoded, "\n")
		got, err := Decode(line)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", line, err)
		}
		if got != m {
			t.Errorf("round trip mismatch: want %+v, got %+v", m, got)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	bad := []string{
		"WRKDONE",
		"WORK 1 2 3",
		"WORK 1 2 3 4 5",
		"WORK -1 2 3 4",
		"WORK a b c d",
		"CHECKPOINT",
		"CHECKPOINT -5",
		"READY extra",
		"DONE extra",
		"STOP now",
		"HASH",
		"FOUND",
		"",
	}
	for _, line := range bad {
		if _, err := Decode(line); err == nil {
			t.Errorf("Decode(%q) = nil error, want ErrMalformed", line)
		} else if !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) error = %v, want wrapping ErrMalformed", line, err)
		}
	}
}

func TestFoundRejectsEmbeddedNewline(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic encoding FOUND with embedded newline")
		}
	}()
	_ = Found("abc\ndef").Encode()
}

func TestReaderBuffersPartialReads(t *testing.T) {
	pr, pw := io.Pipe()
	reader := NewReader(pr)

	done := make(chan struct{})
	var got Message
	var gotErr error
	go func() {
		got, gotErr = reader.Next()
		close(done)
	}()

	// Write the line in two pieces, simulating a slow/partial TCP read.
	_, _ = pw.Write([]byte("WORK 0 10"))
	select {
	case <-done:
		t.Fatal("reader returned before full line arrived")
	default:
	}
	_, _ = pw.Write([]byte("0 5 30\n"))
	<-done

	if gotErr != nil {
		t.Fatalf("Next() error: %v", gotErr)
	}
	want := Work(0, 100, 5, 30)
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	pw.Close()
}

func TestReaderMultipleMessagesInOneBuffer(t *testing.T) {
	buf := bytes.NewBufferString("READY\nDONE\nFOUND abc\n")
	reader := NewReader(buf)

	expect := []Message{Ready(), Done(), Found("abc")}
	for i, want := range expect {
		got, err := reader.Next()
		if err != nil {
			t.Fatalf("message %d: Next() error: %v", i, err)
		}
		if got != want {
			t.Errorf("message %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestReaderEOFOnOrderlyClose(t *testing.T) {
	buf := bytes.NewBufferString("")
	reader := NewReader(buf)
	_, err := reader.Next()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Next() on empty closed stream = %v, want io.EOF", err)
	}
}

func TestReaderUnexpectedEOFOnPartialLine(t *testing.T) {
	buf := bytes.NewBufferString("DONE")
	reader := NewReader(buf)
	_, err := reader.Next()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Next() on truncated line = %v, want io.ErrUnexpectedEOF", err)
	}
	if !errors.Is(err, ErrNeedMore) {
		t.Fatalf("Next() on truncated line = %v, want wrapping ErrNeedMore", err)
	}
}

func TestWriterEncodesExactly(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(Work(1, 2, 3, 4)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, want := buf.String(), "WORK 1 2 3 4\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
