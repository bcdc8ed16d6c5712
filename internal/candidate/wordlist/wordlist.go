// Package wordlist implements the "wordlist" candidate.Backend: a
// mask-based password generator (an index maps mixed-radix to a
// fixed-length string over a configurable charset) paired with a
// SIMD-accelerated SHA-256 digest comparison.
package wordlist

import (
	"encoding/hex"
	"fmt"
	"strconv"

	sha256simd "github.com/minio/sha256-simd"

	"github.com/dzita/distcrack/internal/candidate"
)

// DefaultCharset is used when the "charset" parameter is omitted: the
// 62-character alphanumeric set, lowercase first to match the most
// common password-mask convention.
const DefaultCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is used when the "length" parameter is omitted.
const DefaultLength = 8

// Source enumerates every string of Length over Charset in mixed-radix
// order: index 0 is Charset[0] repeated Length times, and incrementing
// the index behaves like an odometer with Charset as its digit set.
type Source struct {
	Charset []byte
	Length  int
}

// Candidate implements candidate.Source.
func (s Source) Candidate(i uint64) []byte {
	base := uint64(len(s.Charset))
	out := make([]byte, s.Length)
	for pos := s.Length - 1; pos >= 0; pos-- {
		out[pos] = s.Charset[i%base]
		i /= base
	}
	return out
}

// Size returns the total keyspace size |Charset|^Length, the N a
// coordinator configures for a session using this backend.
func (s Source) Size() uint64 {
	n := uint64(1)
	for i := 0; i < s.Length; i++ {
		n *= uint64(len(s.Charset))
	}
	return n
}

// Matcher compares a SHA-256 digest (SIMD-accelerated via
// minio/sha256-simd) against a target hash given as a hex string.
type Matcher struct {
	target [sha256simd.Size]byte
}

// NewMatcher parses targetHex (64 hex characters) into a Matcher.
func NewMatcher(targetHex string) (Matcher, error) {
	raw, err := hex.DecodeString(targetHex)
	if err != nil {
		return Matcher{}, fmt.Errorf("wordlist: target hash is not valid hex: %w", err)
	}
	if len(raw) != sha256simd.Size {
		return Matcher{}, fmt.Errorf("wordlist: target hash must be %d bytes, got %d", sha256simd.Size, len(raw))
	}
	var m Matcher
	copy(m.target[:], raw)
	return m, nil
}

// Match implements candidate.Matcher.
func (m Matcher) Match(c []byte) bool {
	sum := sha256simd.Sum256(c)
	return sum == m.target
}

// Backend implements candidate.Backend for "wordlist".
type Backend struct{}

// Name implements candidate.Backend.
func (Backend) Name() string { return "wordlist" }

// New implements candidate.Backend. Recognized params: "charset"
// (defaults to DefaultCharset) and "length" (defaults to
// DefaultLength).
func (Backend) New(target string, params map[string]string) (candidate.Source, candidate.Matcher, error) {
	charset := params["charset"]
	if charset == "" {
		charset = DefaultCharset
	}
	length := DefaultLength
	if raw, ok := params["length"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, nil, fmt.Errorf("wordlist: invalid length %q", raw)
		}
		length = n
	}
	matcher, err := NewMatcher(target)
	if err != nil {
		return nil, nil, err
	}
	src := Source{Charset: []byte(charset), Length: length}
	return src, matcher, nil
}

// Keyspace computes |charset|^length for the given params, the N a
// coordinator must configure for a wordlist session: exported so
// cmd/crackd can size the session without constructing a throwaway
// Matcher.
func Keyspace(charset string, length int) uint64 {
	if charset == "" {
		charset = DefaultCharset
	}
	if length <= 0 {
		length = DefaultLength
	}
	return Source{Charset: []byte(charset), Length: length}.Size()
}
