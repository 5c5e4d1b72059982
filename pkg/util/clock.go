package util

import "time"

// Clock abstracts wall time so the engine's submission timestamps can be
// controlled in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
