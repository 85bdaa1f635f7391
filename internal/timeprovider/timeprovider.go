package timeprovider

import (
	"sync"
	"time"
)

// Provider returns the current time.
type Provider interface {
	Now() time.Time
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() time.Time

func (f ProviderFunc) Now() time.Time {
	return f()
}

// RealProvider delegates to time.Now.
type RealProvider struct{}

func (RealProvider) Now() time.Time {
	return time.Now()
}

// FixedProvider always returns T.
type FixedProvider struct {
	T time.Time
}

func (f FixedProvider) Now() time.Time {
	return f.T
}

// ManualProvider is a clock that only moves when told to.
type ManualProvider struct {
	mu sync.Mutex
	t  time.Time
}

func NewManual(t time.Time) *ManualProvider {
	return &ManualProvider{t: t}
}

func (m *ManualProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Advance moves the clock forward by d.
func (m *ManualProvider) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to t.
func (m *ManualProvider) Set(t time.Time) {
	m.mu.Lock()
	m.t = t
	m.mu.Unlock()
}
