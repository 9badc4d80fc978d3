package xsession

import (
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand/v2"
)

// IDSize is the length in bytes of a session identifier.
const IDSize = 32

// ID is a fixed-length random session identifier.
type ID [IDSize]byte

// Bytes returns the ID as a byte slice.
func (id ID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether the ID is all zeros, i.e. never assigned.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String renders the ID as grouped uppercase hexadecimal.
func (id ID) String() string {
	return Hex(id[:])
}

// IDGenerator produces session identifiers. A single generator may be
// shared by many containers through WithIDGenerator.
type IDGenerator interface {
	NewID() (ID, error)
}

// RandomGenerator reads identifiers from an io.Reader, crypto/rand by
// default. It is safe for concurrent use when its reader is.
type RandomGenerator struct {
	r io.Reader
}

// NewRandomGenerator returns a generator reading from r. A nil reader
// selects crypto/rand.
func NewRandomGenerator(r io.Reader) *RandomGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &RandomGenerator{r: r}
}

// NewID reads IDSize bytes from the underlying reader.
func (g *RandomGenerator) NewID() (ID, error) {
	var id ID
	if _, err := io.ReadFull(g.r, id[:]); err != nil {
		return ID{}, fmt.Errorf("generate session id: %w", err)
	}
	return id, nil
}

// SeededGenerator derives identifiers from a math/rand/v2 source. It is
// NOT cryptographically secure and only exists for callers that need to
// supply and share their own deterministic generator. Not safe for
// concurrent use.
type SeededGenerator struct {
	src *mrand.Rand
}

// NewSeededGenerator wraps src. When src is nil a source is built from
// two draws of the unseeded global generator: the low byte of the first
// draw XOR the high byte of the second becomes the seed, so generators
// created back to back do not start from the same state.
func NewSeededGenerator(src *mrand.Rand) *SeededGenerator {
	if src == nil {
		lo := mrand.Uint32() & 0xFF
		hi := (mrand.Uint32() & 0xFF000000) >> 24
		seed := uint64(lo ^ hi)
		src = mrand.New(mrand.NewPCG(seed, seed))
	}
	return &SeededGenerator{src: src}
}

// NewID fills every byte of the ID with the low byte of a fresh draw.
func (g *SeededGenerator) NewID() (ID, error) {
	var id ID
	for i := range id {
		id[i] = byte(g.src.Uint32() & 0xFF)
	}
	return id, nil
}
