// Package entropy provides the randomness used to gate and target consequences.
// Production code must use Secure; Scripted exists for deterministic tests.
package entropy

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// Source draws uniform integers in [0, n).
type Source interface {
	Intn(n int) (int, error)
}

type secure struct{}

// Secure returns a crypto/rand backed Source.
func Secure() Source { return secure{} }

func (secure) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("entropy: invalid bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("entropy: read: %w", err)
	}
	return int(v.Int64()), nil
}

var ErrExhausted = errors.New("entropy: scripted source exhausted")

// Scripted replays fixed draws in order; each value is reduced modulo n.
type Scripted struct {
	mu     sync.Mutex
	values []int
	Calls  int
}

func NewScripted(values ...int) *Scripted {
	return &Scripted{values: values}
}

func (s *Scripted) Intn(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return 0, fmt.Errorf("entropy: invalid bound %d", n)
	}
	if s.Calls >= len(s.values) {
		return 0, ErrExhausted
	}
	v := s.values[s.Calls] % n
	s.Calls++
	if v < 0 {
		v += n
	}
	return v, nil
}
