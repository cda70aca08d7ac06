package fittime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	assert := assert.New(t)

	ts := time.Date(2026, 2, 26, 23, 0, 30, 0, time.UTC)
	raw := Raw(ts)
	assert.True(Time(raw).Equal(ts))
	assert.False(IsRelative(raw))
}

func TestRawClamps(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint32(0), Raw(Epoch.Add(-time.Hour)))
	assert.Equal(Invalid-1, Raw(Epoch.Add(200*365*24*time.Hour)))
	assert.True(IsEpoch(Time(0)))
}

func TestRelativeCounters(t *testing.T) {
	assert.True(t, IsRelative(3600))
	assert.False(t, IsRelative(MinAbsolute))
}
