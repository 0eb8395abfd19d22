package matchmaking

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource abstracts the randomness behind bot generation and the
// defense simulation so outcomes are reproducible in tests.
type RandomSource interface {
	Float64() float64   // [0, 1)
	IntN(n int) int     // [0, n)
	Int64N(n int64) int64
}

// cryptoRNG draws from crypto/rand. Default in production.
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	// Top 53 bits give a uniform float in [0, 1).
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func (c cryptoRNG) IntN(n int) int {
	return int(c.Int64N(int64(n)))
}

func (c cryptoRNG) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return int64(c.Float64() * float64(n))
}

// DefaultRNG returns the production randomness source.
func DefaultRNG() RandomSource { return cryptoRNG{} }

// seededRNG is a PCG-seeded source for reproducible runs.
type seededRNG struct{ r *rand.Rand }

// NewSeededRNG returns a deterministic source for tests and replays.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64     { return s.r.Float64() }
func (s *seededRNG) IntN(n int) int       { return s.r.IntN(n) }
func (s *seededRNG) Int64N(n int64) int64 { return s.r.Int64N(n) }
