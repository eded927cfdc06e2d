package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Adjustable is a Clock whose notion of now can be shifted for demos.
type Adjustable interface {
	Clock
	Real() time.Time
	Offset() time.Duration
	Advance(d time.Duration)
	Reset()
}

// Demo is real time plus a mutable offset. The offset lives in memory only;
// a restart returns the clock to real time.
type Demo struct {
	mu     sync.RWMutex
	offset time.Duration
	real   func() time.Time
}

// NewDemo returns a Demo clock reading from real. A nil real uses time.Now.
func NewDemo(real func() time.Time) *Demo {
	if real == nil {
		real = time.Now
	}
	return &Demo{real: real}
}

// Now returns real time shifted by the current offset, in UTC.
func (d *Demo) Now() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.real().UTC().Add(d.offset)
}

// Real returns the unshifted time in UTC.
func (d *Demo) Real() time.Time {
	return d.real().UTC()
}

// Offset returns the accumulated shift.
func (d *Demo) Offset() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.offset
}

// Advance adds dur to the offset.
func (d *Demo) Advance(dur time.Duration) {
	d.mu.Lock()
	d.offset += dur
	d.mu.Unlock()
}

// Reset zeroes the offset.
func (d *Demo) Reset() {
	d.mu.Lock()
	d.offset = 0
	d.mu.Unlock()
}

// Date returns the calendar day of t in loc as YYYY-MM-DD.
func Date(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}
