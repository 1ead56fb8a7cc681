// Package passcode generates short, human-shareable circle codes.
package passcode

import (
	"math/rand/v2"
	"strings"
)

const (
	// Length is the number of characters in a passcode.
	Length = 6

	// Alphabet is the set of characters a passcode is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Generator produces random passcodes.
// A collision only costs the user a failed join, so the codes do not need
// cryptographic strength.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator backed by the process-wide random source.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewGeneratorWithSource returns a Generator that draws from rng.
// Useful for reproducible tests. rng must not be shared across goroutines.
func NewGeneratorWithSource(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate returns a new passcode of Length characters, each drawn
// independently and uniformly from Alphabet.
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		b.WriteByte(Alphabet[g.intN(len(Alphabet))])
	}
	return b.String()
}

func (g *Generator) intN(n int) int {
	if g.rng != nil {
		return g.rng.IntN(n)
	}
	return rand.IntN(n)
}

// Valid reports whether code has the shape of a generated passcode.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
