package crossborder

import "time"

// Per-hop safety margin defaults, measured on the sandbox network. Every
// lock downstream of a hop subtracts one margin from the time remaining,
// so a hop always keeps strictly positive time to claim after the secret
// is revealed downstream. Both are configurable; these are the defaults.
const (
	DefaultHopProcessingMargin = 60 * time.Second
	DefaultHopNetworkMargin    = 5 * time.Second
)

// DefaultHopMargin is the combined per-hop safety margin.
const DefaultHopMargin = DefaultHopProcessingMargin + DefaultHopNetworkMargin

// LockExpiry computes the absolute timelock for a hop's lock: the base
// maximum duration extended by one safety margin per lock downstream of
// this one. Every hop must compute expiries with the same base and margin
// or the cascade invariant breaks.
//
// The result is truncated to whole seconds because the ledger stores
// timelocks as epoch seconds; every party must derive the identical
// timestamp from the same inputs.
func LockExpiry(now time.Time, base, margin time.Duration, downstreamHops int) time.Time {
	d := base + time.Duration(downstreamHops)*margin
	return time.Unix(now.Unix()+int64(d/time.Second), 0).UTC()
}

// LockDuration returns the relative duration corresponding to LockExpiry.
func LockDuration(base, margin time.Duration, downstreamHops int) time.Duration {
	return base + time.Duration(downstreamHops)*margin
}
