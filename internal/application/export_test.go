package application

import "time"

// SetSchedule replaces the timer used for key lifetimes.
func (k *Keyring) SetSchedule(fn func(d time.Duration, f func()) func() bool) {
	k.schedule = fn
}

var RotationOutcome = rotationOutcome
