// Package candidate defines the two pluggable collaborators of the
// crack loop: keyspace enumeration (a Source) and hash comparison (a
// Matcher). The coordinator never calls either; only the worker's
// crack loop does, once per claimed index.
package candidate

// Source maps a keyspace index deterministically to a candidate byte
// string. Implementations must be pure and total over [0, N): the
// same index always yields the same candidate, for every index the
// coordinator might ever dispatch.
type Source interface {
	// Candidate returns the plaintext for index i. It must not contain
	// '\n'; a Source that can produce one is responsible for escaping
	// or rejecting it before this boundary.
	Candidate(i uint64) []byte
}

// Matcher reports whether a candidate's hash equals the target. It is
// called once per candidate in the hot loop, so implementations
// should avoid per-call allocation where practical.
type Matcher interface {
	// Match compares candidate against the target hash this Matcher
	// was constructed with.
	Match(candidate []byte) bool
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(i uint64) []byte

// Candidate implements Source.
func (f SourceFunc) Candidate(i uint64) []byte { return f(i) }

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(candidate []byte) bool

// Match implements Matcher.
func (f MatcherFunc) Match(candidate []byte) bool { return f(candidate) }

// Backend bundles a Source/Matcher pair with the name used to select
// it from the coordinator/worker CLIs, letting cmd/crackd and
// cmd/crackw stay collaborators on a pluggable interface instead of
// hard-coding one keyspace enumeration.
type Backend interface {
	// Name identifies the backend on the command line (e.g.
	// "wordlist", "btcvanity").
	Name() string
	// New constructs the Source/Matcher pair for one session, given
	// the hex-or-ascii target hash transmitted at handshake and any
	// backend-specific configuration (a charset, a mask, nothing).
	New(target string, params map[string]string) (Source, Matcher, error)
}
