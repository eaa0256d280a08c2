// Package fxp implements the liquidity-provider side of the settlement
// protocol: outbound lock creation (Setup), inbound lock verification
// (Locked), secret-driven claims (Completion), the withdrawal-event
// listener and the refund fail-safe timers.
package fxp

import (
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/hubclient"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// Deps are the collaborators a Service instance owns. Each instance
// controls exactly one wallet and is the sole writer of its own record
// sets.
type Deps struct {
	Ledger   ledger.Client
	Token    ledger.TokenClient
	Outbound *store.RecordSet
	Inbound  *store.RecordSet
	Hub      *hubclient.Client
	Logger   zerolog.Logger
}

// Config tunes the protocol timings and funding thresholds.
type Config struct {
	// TokenAddress is the token every lock is denominated in.
	TokenAddress string
	// LockDuration returns the configured base maximum lock duration.
	// Read on every use so configuration edits apply without restart.
	LockDuration func() time.Duration
	// HopMargin is the per-hop safety margin added for each lock
	// downstream of the one being created.
	HopMargin time.Duration
	// RefundGrace delays the fail-safe refund past the timelock, leaving
	// room for a withdrawal racing the expiry.
	RefundGrace time.Duration
	// RefundRetry is the pause before a failed refund attempt is
	// retried.
	RefundRetry time.Duration
	// TargetAllowance is the figure the lock contract's token allowance
	// is topped up to.
	TargetAllowance *big.Int
}

func (c *Config) applyDefaults() {
	if c.LockDuration == nil {
		c.LockDuration = func() time.Duration { return 60 * time.Minute }
	}
	if c.HopMargin == 0 {
		c.HopMargin = crossborder.DefaultHopMargin
	}
	if c.RefundGrace == 0 {
		c.RefundGrace = time.Second
	}
	if c.RefundRetry == 0 {
		c.RefundRetry = 30 * time.Second
	}
	if c.TargetAllowance == nil {
		c.TargetAllowance = new(big.Int).Mul(big.NewInt(100_000), big.NewInt(10_000))
	}
}

// Service is one liquidity-provider instance.
type Service struct {
	ledger   ledger.Client
	token    ledger.TokenClient
	outbound *store.RecordSet
	inbound  *store.RecordSet
	hub      *hubclient.Client
	cfg      Config
	log      zerolog.Logger

	timers *refundTimers
	keys   *keyedMutex
}

// New builds a Service from its dependencies.
func New(deps Deps, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		ledger:   deps.Ledger,
		token:    deps.Token,
		outbound: deps.Outbound,
		inbound:  deps.Inbound,
		hub:      deps.Hub,
		cfg:      cfg,
		log:      deps.Logger,
		timers:   newRefundTimers(),
		keys:     newKeyedMutex(),
	}
}

// Wallet is the ledger address this instance settles with.
func (s *Service) Wallet() string { return s.ledger.Address() }

// keyedMutex serializes work per payment: the Locked handler, the event
// listener and a refund timer may all touch the same lock concurrently,
// and exactly one of them may act at a time. Different payments never
// contend.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*keyedEntry)}
}

// lock acquires the mutex for key and returns the matching unlock.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
