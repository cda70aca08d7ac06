// Package fittime converts FIT date_time counters to and from time.Time.
package fittime

import "time"

// Epoch is the FIT reference time, 1989-12-31T00:00:00Z.
var Epoch = time.Date(1989, 12, 31, 0, 0, 0, 0, time.UTC)

const (
	// Invalid is the uint32 sentinel of an unset date_time.
	Invalid uint32 = 0xFFFFFFFF

	// MinAbsolute is the smallest counter that is an absolute time.
	// Smaller values count seconds since device power-up.
	MinAbsolute uint32 = 0x10000000
)

// Time converts a device counter to UTC.
func Time(raw uint32) time.Time {
	return Epoch.Add(time.Duration(raw) * time.Second)
}

// Raw converts t back to a device counter, truncating sub-second precision.
// Times before the epoch clamp to zero; times past the counter's range clamp
// to the last valid value.
func Raw(t time.Time) uint32 {
	secs := int64(t.Sub(Epoch) / time.Second)
	switch {
	case secs < 0:
		return 0
	case secs >= int64(Invalid):
		return Invalid - 1
	}
	return uint32(secs)
}

// IsRelative reports whether raw is a power-up relative counter rather than
// an absolute time.
func IsRelative(raw uint32) bool {
	return raw < MinAbsolute
}

// IsEpoch reports whether t is the zero value of a FIT timestamp.
func IsEpoch(t time.Time) bool {
	return t.Equal(Epoch)
}
