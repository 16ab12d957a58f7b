package domain

import "github.com/jonboulle/clockwork"

// NewClock returns c, or the real clock when c is nil.
func NewClock(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}
