package grading

import "time"

// SetNow freezes the service clock; the returned func restores it.
func SetNow(now time.Time) func() {
	return SetNowFunc(func() time.Time { return now })
}

// SetNowFunc replaces the service clock; the returned func restores it.
func SetNowFunc(f func() time.Time) func() {
	nowFunc = f
	return func() { nowFunc = time.Now }
}
