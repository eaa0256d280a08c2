// Package ledgertest provides an in-memory ledger implementing the same
// lock-contract semantics as the on-chain deployment: hashlock-gated
// withdrawals, timelock-gated refunds, padded preimages in events and a
// zero-valued sentinel for unknown lock ids. It backs the protocol tests.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
)

// ContractAddress is the fixed pseudo-address of the fake lock contract.
const ContractAddress = "0x00000000000000000000000000000000000000cb"

const preimageWord = 32

// Ledger is the shared fake chain state. Clients bound to individual
// wallets are derived with Client.
type Ledger struct {
	mu        sync.Mutex
	now       func() time.Time
	locks     map[string]*ledger.Lock
	created   []chan ledger.CreatedEvent
	withdrawn []chan ledger.WithdrawEvent
	seq       uint64
}

// New creates an empty fake ledger using the wall clock.
func New() *Ledger {
	return &Ledger{
		now:   time.Now,
		locks: make(map[string]*ledger.Lock),
	}
}

// SetClock replaces the ledger's notion of now. Tests use this to cross
// timelock boundaries without sleeping.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Lock returns a copy of the stored lock, for test assertions.
func (l *Ledger) Lock(lockID string) ledger.Lock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lk, ok := l.locks[strings.ToLower(lockID)]; ok {
		return *lk
	}
	return ledger.Lock{}
}

// Client binds a wallet address to the shared ledger.
func (l *Ledger) Client(wallet string) ledger.Client {
	return &client{ledger: l, wallet: strings.ToLower(wallet)}
}

type client struct {
	ledger *Ledger
	wallet string
}

func (c *client) Address() string         { return c.wallet }
func (c *client) ContractAddress() string { return ContractAddress }

func (c *client) CreateLock(_ context.Context, params ledger.CreateLockParams) (string, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return "", fmt.Errorf("create lock: non-positive amount")
	}
	if !params.Timelock.After(l.now()) {
		return "", fmt.Errorf("create lock: timelock not in the future")
	}

	l.seq++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], l.seq)
	sum := sha256.Sum256([]byte(c.wallet + params.Receiver + params.Hashlock + string(nonce[:])))
	id := "0x" + hex.EncodeToString(sum[:])

	lock := &ledger.Lock{
		ID:       id,
		Sender:   c.wallet,
		Receiver: strings.ToLower(params.Receiver),
		Token:    strings.ToLower(params.Token),
		Amount:   new(big.Int).Set(params.Amount),
		Hashlock: normalizeHex(params.Hashlock),
		Timelock: params.Timelock.Truncate(time.Second),
	}
	l.locks[strings.ToLower(id)] = lock

	l.broadcastCreated(ledger.CreatedEvent{
		LockID:   id,
		Sender:   lock.Sender,
		Receiver: lock.Receiver,
		Token:    lock.Token,
		Amount:   new(big.Int).Set(lock.Amount),
		Hashlock: lock.Hashlock,
	})
	return id, nil
}

func (c *client) GetLock(_ context.Context, lockID string) (ledger.Lock, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[strings.ToLower(lockID)]
	if !ok {
		return ledger.Lock{}, nil
	}
	out := *lock
	out.Amount = new(big.Int).Set(lock.Amount)
	return out, nil
}

func (c *client) Withdraw(_ context.Context, lockID string, preimage []byte) error {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[strings.ToLower(lockID)]
	if !ok {
		return fmt.Errorf("withdraw %s: unknown lock", lockID)
	}
	if lock.Terminal() {
		return fmt.Errorf("withdraw %s: lock already terminal", lockID)
	}
	if !l.now().Before(lock.Timelock) {
		return fmt.Errorf("withdraw %s: timelock expired", lockID)
	}
	sum := sha256.Sum256(preimage)
	if hex.EncodeToString(sum[:]) != lock.Hashlock {
		return fmt.Errorf("withdraw %s: preimage does not match hashlock", lockID)
	}

	// The contract stores the preimage padded to a full word and keeps
	// the original length separately.
	padded := make([]byte, preimageWord)
	copy(padded, preimage)
	lock.Withdrawn = true
	lock.Preimage = padded
	lock.SecretLength = len(preimage)

	l.broadcastWithdrawn(ledger.WithdrawEvent{
		LockID:       lock.ID,
		Preimage:     padded,
		SecretLength: len(preimage),
	})
	return nil
}

func (c *client) Refund(_ context.Context, lockID string) error {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[strings.ToLower(lockID)]
	if !ok {
		return fmt.Errorf("refund %s: unknown lock", lockID)
	}
	if lock.Terminal() {
		return fmt.Errorf("refund %s: lock already terminal", lockID)
	}
	if l.now().Before(lock.Timelock) {
		return fmt.Errorf("refund %s: timelock not yet expired", lockID)
	}
	lock.Refunded = true
	return nil
}

func (c *client) WatchWithdrawals(ctx context.Context) (<-chan ledger.WithdrawEvent, error) {
	l := c.ledger
	ch := make(chan ledger.WithdrawEvent, 32)
	l.mu.Lock()
	l.withdrawn = append(l.withdrawn, ch)
	l.mu.Unlock()
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		for i, sub := range l.withdrawn {
			if sub == ch {
				l.withdrawn = append(l.withdrawn[:i], l.withdrawn[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (c *client) WatchCreated(ctx context.Context) (<-chan ledger.CreatedEvent, error) {
	l := c.ledger
	ch := make(chan ledger.CreatedEvent, 32)
	l.mu.Lock()
	l.created = append(l.created, ch)
	l.mu.Unlock()
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		for i, sub := range l.created {
			if sub == ch {
				l.created = append(l.created[:i], l.created[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// broadcastCreated must be called with the ledger mutex held.
func (l *Ledger) broadcastCreated(ev ledger.CreatedEvent) {
	for _, ch := range l.created {
		select {
		case ch <- ev:
		default:
		}
	}
}

// broadcastWithdrawn must be called with the ledger mutex held.
func (l *Ledger) broadcastWithdrawn(ev ledger.WithdrawEvent) {
	for _, ch := range l.withdrawn {
		select {
		case ch <- ev:
		default:
		}
	}
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}
