// Package clock provides creation timestamps that never repeat within a process.
package clock

import (
	"sync"
	"time"
)

// Stamper hands out millisecond UTC timestamps that strictly increase. When
// the wall clock stalls or steps backwards the stamper advances one
// millisecond past the previous value instead.
type Stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewStamper builds a stamper over now; nil uses time.Now.
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// Next returns the next creation timestamp.
func (s *Stamper) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := s.now().UTC().Truncate(time.Millisecond)
	if !value.After(s.last) {
		value = s.last.Add(time.Millisecond)
	}
	s.last = value
	return value
}
