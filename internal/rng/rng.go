// Package rng is the local outcome generator used when no authoritative
// result arrives in time.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
	"sync"
	"time"
)

type Source struct {
	strong io.Reader

	mu   sync.Mutex
	weak *mrand.Rand
}

func New() *Source {
	return NewWithReader(rand.Reader)
}

// NewWithReader uses r as the strong source; a nil reader means only the
// PCG fallback is used.
func NewWithReader(r io.Reader) *Source {
	seed := uint64(time.Now().UnixNano())
	return &Source{
		strong: r,
		weak:   mrand.New(mrand.NewPCG(seed, seed>>1|1)),
	}
}

func (s *Source) Uint32() uint32 {
	if s.strong != nil {
		var b [4]byte
		if _, err := io.ReadFull(s.strong, b[:]); err == nil {
			return binary.BigEndian.Uint32(b[:])
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weak.Uint32()
}

// Index returns Uint32() % n. Modulo bias is negligible for the small
// domains used here.
func (s *Source) Index(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint32() % uint32(n))
}

func Pick[T any](s *Source, domain []T) T {
	return domain[s.Index(len(domain))]
}
