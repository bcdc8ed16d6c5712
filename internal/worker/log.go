package worker

import "os"

// stderrWriter is the default destination for the single-line error
// diagnostics xerrors.Line renders: process stderr, written directly
// rather than through the standard log package since the line is
// already fully formed and needs no extra timestamp prefix.
type stderrWriter struct{}

func (stderrWriter) Write(p []byte) (int, error) {
	return os.Stderr.Write(p)
}
