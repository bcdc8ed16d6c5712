// Package xerrors carries the error taxonomy shared by both
// endpoints: every fallible operation returns a message plus location
// metadata (function, file, line), rendered as a single-line
// diagnostic on process exit.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind discriminates the error taxonomy. It is not meant for type
// switches in caller code; inspect Detail.Kind for logging.
type Kind int

const (
	KindArgument Kind = iota
	KindResolution
	KindSocketLifecycle
	KindIO
	KindProtocol
	KindRange
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindResolution:
		return "resolution"
	case KindSocketLifecycle:
		return "socket"
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	case KindRange:
		return "range"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Detail is a discriminated failure: a message plus
// function/file/line metadata, wrapping an optional cause.
type Detail struct {
	Kind     Kind
	Msg      string
	Function string
	File     string
	Line     int
	Cause    error
}

func (d *Detail) Error() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s at %s:%d in %s: %v", d.Msg, d.File, d.Line, d.Function, d.Cause)
	}
	return fmt.Sprintf("%s at %s:%d in %s", d.Msg, d.File, d.Line, d.Function)
}

func (d *Detail) Unwrap() error { return d.Cause }

// New builds a Detail, capturing the call site of the immediate caller.
func New(kind Kind, cause error, format string, args ...any) *Detail {
	pc, file, line, ok := runtime.Caller(1)
	fn := "unknown"
	if ok {
		if f := runtime.FuncForPC(pc); f != nil {
			fn = f.Name()
		}
	}
	return &Detail{
		Kind:     kind,
		Msg:      fmt.Sprintf(format, args...),
		Function: fn,
		File:     file,
		Line:     line,
		Cause:    cause,
	}
}

// Line renders the single-line stderr diagnostic:
// "ERROR <msg> at <file>:<line> in <function>".
func Line(err error) string {
	var d *Detail
	if errors.As(err, &d) {
		return fmt.Sprintf("ERROR %s at %s:%d in %s", d.Msg, d.File, d.Line, d.Function)
	}
	return fmt.Sprintf("ERROR %v", err)
}

// KindOf extracts the Kind from an error built with New, defaulting to
// KindIO when the error was not constructed here (e.g. a bare net
// error bubbling up from a Read/Write call).
func KindOf(err error) Kind {
	var d *Detail
	if errors.As(err, &d) {
		return d.Kind
	}
	return KindIO
}
