package usecase

import "time"

// Clock is the time source of the engine and schedulers.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
