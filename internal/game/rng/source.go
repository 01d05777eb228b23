// Package rng provides the randomness abstraction shared by the safe-location
// search, the effect tables and the roulette actions.
package rng

import (
	"crypto/rand"
	"math/big"
)

// Source is the randomness provider.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
//
// Invariant: All values produced are uniformly distributed in [0, n) for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "rng: Intn called with n <= 0" if n <= 0.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("rng: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Between returns a value in the closed range [lo, hi].
//
// Postcondition: lo <= result <= hi; returns lo when hi < lo.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Offset returns a value in [-span, span].
func Offset(src Source, span int) int {
	if span <= 0 {
		return 0
	}
	return src.Intn(2*span+1) - span
}

// Pick returns a uniformly chosen element of items.
//
// Postcondition: Returns (zero, false) when items is empty.
func Pick[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[src.Intn(len(items))], true
}
