package clock

import "time"

// Clock abstracts wall-clock time for testability.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
