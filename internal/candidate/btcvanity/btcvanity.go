// Package btcvanity implements a candidate.Backend for a distributed
// Bitcoin vanity-address search: a keyspace index maps directly to a
// private key (index i => scalar i+1, skipping the invalid zero
// scalar), so the coordinator can carve out disjoint, resumable
// ranges across many workers instead of each drawing random keys in
// an unbounded, non-resumable scan. Generation runs the standard
// P2PKH pipeline: compressed pubkey, Hash160, version byte,
// double-SHA256 checksum, Base58.
package btcvanity

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
	sha256simd "github.com/minio/sha256-simd"

	"github.com/dzita/distcrack/internal/candidate"
)

// Source maps keyspace index i to the Base58 P2PKH address generated
// from private scalar i+1. The candidate transmitted in FOUND is the
// address itself, not the private key; the key is recoverable from
// the winning index alone, so nothing sensitive crosses the wire.
type Source struct{}

// Candidate implements candidate.Source.
func (Source) Candidate(i uint64) []byte {
	return []byte(addressForIndex(i))
}

func addressForIndex(i uint64) string {
	var scalarBytes [32]byte
	// scalar = i+1, big-endian in the low 8 bytes; the zero scalar
	// would need i == MaxUint64, which lies outside any keyspace [0, N)
	// with a uint64 N.
	binary.BigEndian.PutUint64(scalarBytes[24:], i+1)

	priv, _ := btcec.PrivKeyFromBytes(scalarBytes[:])
	pubKeyBytes := priv.PubKey().SerializeCompressed()
	hash160 := btcutil.Hash160(pubKeyBytes)

	buf := make([]byte, 0, 25)
	buf = append(buf, 0x00)
	buf = append(buf, hash160...)

	h1 := sha256simd.Sum256(buf)
	h2 := sha256simd.Sum256(h1[:])
	buf = append(buf, h2[:4]...)

	return base58.Encode(buf)
}

// Matcher compares a generated address against a fixed target
// address. Unlike wordlist's digest comparison, the "hash" here is
// the address string itself (P2PKH addresses already are a hash of
// the public key), so Match is a direct string comparison.
type Matcher struct {
	target string
}

// NewMatcher validates target as a plausible Base58 P2PKH address
// before accepting it, rejecting malformed targets early rather than
// scanning forever for an address that can never appear.
func NewMatcher(target string) (Matcher, error) {
	decoded, version, err := base58CheckDecode(target)
	if err != nil {
		return Matcher{}, fmt.Errorf("btcvanity: target is not a valid Base58Check address: %w", err)
	}
	if version != 0x00 {
		return Matcher{}, fmt.Errorf("btcvanity: target version byte 0x%02x is not mainnet P2PKH (0x00)", version)
	}
	if len(decoded) != 20 {
		return Matcher{}, fmt.Errorf("btcvanity: target payload is %d bytes, want 20 (Hash160)", len(decoded))
	}
	return Matcher{target: target}, nil
}

// Match implements candidate.Matcher.
func (m Matcher) Match(c []byte) bool {
	return string(c) == m.target
}

func base58CheckDecode(addr string) (payload []byte, version byte, err error) {
	full := base58.Decode(addr)
	if len(full) < 5 {
		return nil, 0, fmt.Errorf("address too short")
	}
	payload = full[1 : len(full)-4]
	checksum := full[len(full)-4:]

	check := append([]byte{full[0]}, payload...)
	h1 := sha256simd.Sum256(check)
	h2 := sha256simd.Sum256(h1[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != h2[i] {
			return nil, 0, fmt.Errorf("checksum mismatch")
		}
	}
	return payload, full[0], nil
}

// Backend implements candidate.Backend for "btcvanity".
type Backend struct{}

// Name implements candidate.Backend.
func (Backend) Name() string { return "btcvanity" }

// New implements candidate.Backend. No params are recognized; the
// keyspace N for a btcvanity session is chosen by the operator
// directly (how many sequential private keys to scan), not derived
// from backend parameters.
func (Backend) New(target string, _ map[string]string) (candidate.Source, candidate.Matcher, error) {
	matcher, err := NewMatcher(target)
	if err != nil {
		return nil, nil, err
	}
	return Source{}, matcher, nil
}

// secp256k1OrderHex is the order of the secp256k1 base point (the
// curve parameter n), spelled out directly rather than pulled from a
// btcec/decred symbol whose export surface shifts across versions.
const secp256k1OrderHex = "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141"

// maxScalar is the secp256k1 group order minus one, the largest valid
// private key scalar; exposed so a coordinator can refuse to
// configure a keyspace N large enough to overflow it.
var maxScalar = func() *big.Int {
	n, ok := new(big.Int).SetString(secp256k1OrderHex, 16)
	if !ok {
		panic("btcvanity: invalid secp256k1 order constant")
	}
	return n.Sub(n, big.NewInt(1))
}()

// MaxKeyspace returns the largest N safe to configure for a btcvanity
// session without wrapping past the curve order.
func MaxKeyspace() *big.Int { return new(big.Int).Set(maxScalar) }
