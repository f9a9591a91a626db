package algo

import (
	sha256 "github.com/minio/sha256-simd"
)

// SHA256d is a deterministic stand-in capability for development, testing,
// and benchmarking. It computes double SHA-256 over blob||nonce and reports
// whatever kind it was constructed with. It is NOT a real RandomX or
// CryptoNight implementation and produces no valid proof of work.
type SHA256d struct {
	kind Kind
}

// NewSHA256d creates a stand-in capability reporting the given kind.
func NewSHA256d(kind Kind) *SHA256d {
	return &SHA256d{kind: kind}
}

// Hash computes sha256(sha256(blob || nonce_le)).
func (s *SHA256d) Hash(blob []byte, nonce uint64) ([32]byte, error) {
	first := sha256.Sum256(HashInput(blob, nonce))
	return sha256.Sum256(first[:]), nil
}

// Verify reports whether the digest for nonce is below target.
func (s *SHA256d) Verify(blob []byte, nonce uint64, target []byte) (bool, error) {
	return VerifyWith(s, blob, nonce, target)
}

// Kind returns the algorithm kind this stand-in was constructed with.
func (s *SHA256d) Kind() Kind {
	return s.kind
}

// RegisterDevBackends registers the SHA256d stand-in for every algorithm
// kind. Intended for development builds and the benchmark tool; production
// builds register real backends instead.
func RegisterDevBackends() {
	for _, kind := range []Kind{KindRandomX, KindCryptoNightV7, KindCryptoNightR} {
		k := kind
		Register(k, func(Options) (Algorithm, error) {
			return NewSHA256d(k), nil
		})
	}
}
