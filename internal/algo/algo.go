// Package algo defines the hashing capability consumed by the mining core.
// The heavy proof-of-work implementations (RandomX, CryptoNight) live outside
// this repository and plug in through the Register/New factory; this package
// owns the common interface, the algorithm identifiers, and target comparison.
package algo

import (
	"bytes"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/bardlex/gomc/pkg/errors"
)

// Kind identifies a proof-of-work algorithm.
type Kind int

const (
	// KindRandomX is the RandomX algorithm (CPU-optimized, ASIC-resistant)
	KindRandomX Kind = iota
	// KindCryptoNightV7 is CryptoNight variant 7 (legacy)
	KindCryptoNightV7
	// KindCryptoNightR is CryptoNight-R (legacy)
	KindCryptoNightR
)

// String returns the canonical wire tag for the algorithm.
func (k Kind) String() string {
	switch k {
	case KindRandomX:
		return "randomx"
	case KindCryptoNightV7:
		return "cryptonight-v7"
	case KindCryptoNightR:
		return "cryptonight-r"
	default:
		return "unknown"
	}
}

// ParseKind parses an algorithm tag, accepting the short aliases used by
// some pools ("cnv7", "cnr").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "randomx":
		return KindRandomX, nil
	case "cryptonight-v7", "cnv7":
		return KindCryptoNightV7, nil
	case "cryptonight-r", "cnr":
		return KindCryptoNightR, nil
	default:
		return 0, errors.New(errors.ErrorTypeAlgorithm, "parse_kind",
			"unknown algorithm").WithContext("algorithm", s)
	}
}

// Algorithm is the hashing capability used by mining workers.
//
// Hash computes a 32-byte digest over blob with the nonce appended as 8
// little-endian bytes. Verify reports whether the digest for the given nonce
// is numerically below target. Implementations must be safe for concurrent
// use; workers share a single instance across threads.
type Algorithm interface {
	Hash(blob []byte, nonce uint64) ([32]byte, error)
	Verify(blob []byte, nonce uint64, target []byte) (bool, error)
	Kind() Kind
}

// Options carries backend-specific construction parameters.
// RandomX backends require Seed and honor Fast; CryptoNight backends only
// read Variant.
type Options struct {
	// Seed is the 32-byte dataset key for RandomX backends.
	Seed [32]byte
	// Fast selects the large-memory fast mode for RandomX backends.
	Fast bool
	// Variant selects the CryptoNight variant (1 = V7, 4 = R).
	Variant int
}

// Factory constructs an Algorithm from backend options.
type Factory func(opts Options) (Algorithm, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]Factory)
)

// Register installs a backend factory for the given kind, replacing any
// previous registration.
func Register(kind Kind, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = f
}

// New constructs the registered backend for kind.
func New(kind Kind, opts Options) (Algorithm, error) {
	registryMu.RLock()
	f, ok := registry[kind]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrorTypeAlgorithm, "new_algorithm",
			"no backend registered").WithContext("algorithm", kind.String())
	}

	return f(opts)
}

// BelowTarget reports whether digest is strictly less than target under
// unsigned big-endian byte comparison. Equality is not a pass.
func BelowTarget(digest [32]byte, target []byte) bool {
	return bytes.Compare(digest[:], target) < 0
}

// HashInput assembles the bytes an Algorithm hashes for a given nonce:
// the blob followed by the nonce in little-endian order.
func HashInput(blob []byte, nonce uint64) []byte {
	input := make([]byte, len(blob)+8)
	copy(input, blob)
	binary.LittleEndian.PutUint64(input[len(blob):], nonce)
	return input
}

// VerifyWith implements Verify for backends in terms of their Hash.
func VerifyWith(a Algorithm, blob []byte, nonce uint64, target []byte) (bool, error) {
	digest, err := a.Hash(blob, nonce)
	if err != nil {
		return false, err
	}
	return BelowTarget(digest, target), nil
}
