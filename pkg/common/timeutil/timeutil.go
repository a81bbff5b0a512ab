// Package timeutil provides a small clock abstraction so components can be
// tested with deterministic time.
package timeutil

import (
	"sync"
	"time"
)

// Provider supplies the current time. Components depend on this interface
// rather than calling time.Now directly so tests can control the clock.
type Provider interface {
	Now() time.Time
}

type realProvider struct{}

func (realProvider) Now() time.Time { return time.Now() }

// Default returns a Provider backed by the system clock.
func Default() Provider { return realProvider{} }

// Mock is a Provider whose time only moves when told to.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a Mock provider fixed at the given time.
func NewMock(now time.Time) *Mock { return &Mock{now: now} }

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set pins the mock clock to the given time.
func (m *Mock) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
