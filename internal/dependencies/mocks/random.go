package mocks

import (
	"errors"
	"fmt"

	"github.com/mcoot/rpslsgame/internal/dependencies/random"
)

// MockRandom is a deterministic Random for tests
type MockRandom struct {
	// Queued holds byte strings returned, in order, by successive reads
	Queued [][]byte

	// Err, when set, is returned by every read
	Err error

	counter byte
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Read serves the next queued value, or a counter pattern once the queue is empty.
// A queued value must be exactly len(p) bytes.
func (r *MockRandom) Read(p []byte) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	if len(r.Queued) > 0 {
		next := r.Queued[0]
		if len(next) != len(p) {
			return 0, fmt.Errorf("mock random: queued %d bytes, read wants %d", len(next), len(p))
		}
		r.Queued = r.Queued[1:]
		copy(p, next)
		return len(p), nil
	}
	r.counter++
	for i := range p {
		p[i] = r.counter + byte(i)
	}
	return len(p), nil
}

// Bytes returns the next n bytes
func (r *MockRandom) Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("mock random: invalid length")
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Queue adds values to the read queue
func (r *MockRandom) Queue(values ...[]byte) {
	r.Queued = append(r.Queued, values...)
}

// Reset clears the queue, the error and the counter
func (r *MockRandom) Reset() {
	r.Queued = nil
	r.Err = nil
	r.counter = 0
}
