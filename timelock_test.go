package crossborder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockExpiry(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	base := 60 * time.Minute

	expiry := LockExpiry(now, base, DefaultHopMargin, 0)
	assert.Equal(t, now.Add(base), expiry)

	expiry = LockExpiry(now, base, DefaultHopMargin, 2)
	assert.Equal(t, now.Add(base+2*DefaultHopMargin), expiry)
}

func TestLockExpiryTruncatesToWholeSeconds(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 734_000_000, time.UTC)
	expiry := LockExpiry(now, time.Hour, DefaultHopMargin, 1)
	assert.Zero(t, expiry.Nanosecond())
	assert.Equal(t, time.UTC, expiry.Location())
}

// Each hop computes its expiry with one fewer downstream lock, so the
// chain of timelocks from sender to recipient strictly decreases and
// every hop keeps a full margin to claim after the hop below it.
func TestTimelockCascadeStrictlyDecreases(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	base := 60 * time.Minute

	var prev time.Time
	for hops := 3; hops >= 0; hops-- {
		expiry := LockExpiry(now, base, DefaultHopMargin, hops)
		if !prev.IsZero() {
			assert.True(t, expiry.Before(prev), "hop with %d downstream locks must expire before its upstream", hops)
			assert.Equal(t, DefaultHopMargin, prev.Sub(expiry))
		}
		prev = expiry
	}
}

func TestLockDuration(t *testing.T) {
	assert.Equal(t, time.Hour, LockDuration(time.Hour, DefaultHopMargin, 0))
	assert.Equal(t, time.Hour+65*time.Second, LockDuration(time.Hour, DefaultHopMargin, 1))
}
