// Package protocol implements the line-oriented ASCII coordination
// protocol between the coordinator and its workers. Every
// message is terminated by '\n'; fields are space-separated decimal
// ASCII, no leading sign, no embedded newlines in candidate payloads.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a message type on the wire.
type Kind int

const (
	KindHash Kind = iota
	KindReady
	KindWork
	KindStop
	KindCheckpoint
	KindDone
	KindFound
)

func (k Kind) String() string {
	switch k {
	case KindHash:
		return "HASH"
	case KindReady:
		return "READY"
	case KindWork:
		return "WORK"
	case KindStop:
		return "STOP"
	case KindCheckpoint:
		return "CHECKPOINT"
	case KindDone:
		return "DONE"
	case KindFound:
		return "FOUND"
	default:
		return "UNKNOWN"
	}
}

// Message is the decoded form of one protocol line. Only the fields
// relevant to Kind are populated; the zero value of the rest is
// meaningless and must not be inspected.
type Message struct {
	Kind Kind

	Hash       string // HASH
	Start      uint64 // WORK
	Len        uint64 // WORK
	Checkpoint uint64 // WORK (interval), CHECKPOINT (idx reuses this field)
	Timeout    uint32 // WORK
	Candidate  string // FOUND
}

// Hash builds a HASH message.
func Hash(hash string) Message { return Message{Kind: KindHash, Hash: hash} }

// Ready builds a READY message.
func Ready() Message { return Message{Kind: KindReady} }

// Work builds a WORK message.
func Work(start, length, checkpoint uint64, timeout uint32) Message {
	return Message{Kind: KindWork, Start: start, Len: length, Checkpoint: checkpoint, Timeout: timeout}
}

// Stop builds a STOP message.
func Stop() Message { return Message{Kind: KindStop} }

// CheckpointMsg builds a CHECKPOINT message. The progress index is
// carried in the Checkpoint field for symmetry with WORK.
func CheckpointMsg(idx uint64) Message {
	return Message{Kind: KindCheckpoint, Checkpoint: idx}
}

// Done builds a DONE message.
func Done() Message { return Message{Kind: KindDone} }

// Found builds a FOUND message.
func Found(candidate string) Message {
	return Message{Kind: KindFound, Candidate: candidate}
}

// Encode renders m as a single '\n'-terminated protocol line.
//
// Encode returns no error. The constructors above do not validate
// their arguments; instead Encode panics on a FOUND candidate that
// contains an embedded newline (one never belongs on the wire, so a
// newline reaching here is a programming error in the candidate
// source, not a runtime condition to recover from) and on a Message
// of unknown Kind.
func (m Message) Encode() string {
	switch m.Kind {
	case KindHash:
		return "HASH " + m.Hash + "\n"
	case KindReady:
		return "READY\n"
	case KindWork:
		return fmt.Sprintf("WORK %d %d %d %d\n", m.Start, m.Len, m.Checkpoint, m.Timeout)
	case KindStop:
		return "STOP\n"
	case KindCheckpoint:
		return fmt.Sprintf("CHECKPOINT %d\n", m.Checkpoint)
	case KindDone:
		return "DONE\n"
	case KindFound:
		if strings.ContainsRune(m.Candidate, '\n') {
			panic("protocol: FOUND candidate contains embedded newline")
		}
		return "FOUND " + m.Candidate + "\n"
	default:
		panic("protocol: encode of unknown message kind")
	}
}

// Decode parses a single line (without its trailing '\n', as returned
// by bufio.Scanner or a manual ReadString('\n') with the delimiter
// trimmed) into a Message.
//
// Decode is a hard parser: any line that does not match one of the
// seven recognized prefixes, or whose fields are not well-formed
// base-10 unsigned integers, is a parse error; there is no silent
// skipping.
func Decode(line string) (Message, error) {
	prefix, rest, hasRest := strings.Cut(line, " ")
	if !hasRest {
		prefix = line
		rest = ""
	}

	switch prefix {
	case "HASH":
		if rest == "" {
			return Message{}, fmt.Errorf("%w: HASH requires a hash argument", ErrMalformed)
		}
		return Hash(rest), nil
	case "READY":
		if rest != "" {
			return Message{}, fmt.Errorf("%w: READY takes no arguments", ErrMalformed)
		}
		return Ready(), nil
	case "WORK":
		fields := strings.Fields(rest)
		if len(fields) != 4 {
			return Message{}, fmt.Errorf("%w: WORK requires 4 fields, got %d", ErrMalformed, len(fields))
		}
		start, err := parseUint64(fields[0])
		if err != nil {
			return Message{}, fmt.Errorf("%w: WORK start: %v", ErrMalformed, err)
		}
		length, err := parseUint64(fields[1])
		if err != nil {
			return Message{}, fmt.Errorf("%w: WORK len: %v", ErrMalformed, err)
		}
		checkpoint, err := parseUint64(fields[2])
		if err != nil {
			return Message{}, fmt.Errorf("%w: WORK checkpoint: %v", ErrMalformed, err)
		}
		timeout, err := parseUint32(fields[3])
		if err != nil {
			return Message{}, fmt.Errorf("%w: WORK timeout: %v", ErrMalformed, err)
		}
		return Work(start, length, checkpoint, timeout), nil
	case "STOP":
		if rest != "" {
			return Message{}, fmt.Errorf("%w: STOP takes no arguments", ErrMalformed)
		}
		return Stop(), nil
	case "CHECKPOINT":
		if rest == "" {
			return Message{}, fmt.Errorf("%w: CHECKPOINT requires an index", ErrMalformed)
		}
		idx, err := parseUint64(rest)
		if err != nil {
			return Message{}, fmt.Errorf("%w: CHECKPOINT idx: %v", ErrMalformed, err)
		}
		return CheckpointMsg(idx), nil
	case "DONE":
		if rest != "" {
			return Message{}, fmt.Errorf("%w: DONE takes no arguments", ErrMalformed)
		}
		return Done(), nil
	case "FOUND":
		if rest == "" {
			return Message{}, fmt.Errorf("%w: FOUND requires a candidate argument", ErrMalformed)
		}
		return Found(rest), nil
	default:
		return Message{}, fmt.Errorf("%w: unrecognized message %q", ErrMalformed, prefix)
	}
}

func parseUint64(s string) (uint64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseUint32(s string) (uint32, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
