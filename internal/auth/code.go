package auth

import (
	"math/rand"
	"sync"
)

const (
	codeLength   = 6
	codeAlphabet = "0123456789"
)

// CodeGenerator produces verification codes from an injected random source,
// so tests can seed it and assert on exact codes.
type CodeGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCodeGenerator builds a generator around the given source.
func NewCodeGenerator(src rand.Source) *CodeGenerator {
	return &CodeGenerator{rng: rand.New(src)}
}

// Next returns a fresh 6-digit numeric verification code.
func (g *CodeGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[g.rng.Intn(len(codeAlphabet))]
	}
	return string(buf)
}
