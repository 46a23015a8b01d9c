package meternum

import (
	"crypto/rand"
	"math/big"
)

// Length is the number of digits in a meter number.
const Length = 8

// min/max bounds for an 8-digit number, leading digit never zero
var (
	lowerBound = big.NewInt(10000000)
	spanSize   = big.NewInt(90000000)
)

// Generate returns a random 8-digit meter number as a decimal string.
// Uniqueness is the caller's problem: the meters table carries a unique
// index and registration retries on collision.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, spanSize)
	if err != nil {
		return "", err
	}
	n.Add(n, lowerBound)
	return n.String(), nil
}

// Valid reports whether s looks like a meter number: exactly 8 digits,
// no leading zero.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[0] != '0'
}
