// Package ledger defines the interface between the settlement protocol
// and the shared ledger's hashed time-lock contract. The protocol only
// ever creates, reads and transitions locks through this interface; the
// ledger itself (consensus, token custody) is out of scope.
package ledger

import (
	"context"
	"math/big"
	"time"
)

// Lock is one hop's on-ledger commitment. A payment with an N-hop route
// has exactly N locks, all sharing the same hashlock but with strictly
// decreasing timelocks from sender to recipient. Once observed on-chain a
// lock's fields are ground truth; any instruction disagreeing with them
// is rejected, not reconciled.
type Lock struct {
	ID       string
	Sender   string
	Receiver string
	Token    string
	Amount   *big.Int
	Hashlock string
	Timelock time.Time

	Withdrawn bool
	Refunded  bool

	// Preimage and SecretLength are populated once the lock has been
	// withdrawn. The contract pads the preimage to a full word; the
	// original secret is the first SecretLength bytes.
	Preimage     []byte
	SecretLength int
}

// Exists reports whether the lock was found on the ledger. An unknown
// lock id reads back as a zero-valued sentinel.
func (l Lock) Exists() bool { return l.ID != "" }

// Terminal reports whether the lock reached one of its two mutually
// exclusive end states.
func (l Lock) Terminal() bool { return l.Withdrawn || l.Refunded }

// CreateLockParams are the arguments of a lock creation transaction.
type CreateLockParams struct {
	Receiver string
	Hashlock string
	Timelock time.Time
	Token    string
	Amount   *big.Int
}

// CreatedEvent is emitted by the ledger when a new lock appears.
type CreatedEvent struct {
	LockID   string
	Sender   string
	Receiver string
	Token    string
	Amount   *big.Int
	Hashlock string
}

// WithdrawEvent is emitted when a lock's receiver claims it with the
// preimage. The preimage arrives padded; SecretLength gives the length of
// the original secret.
type WithdrawEvent struct {
	LockID       string
	Preimage     []byte
	SecretLength int
}

// Client is the lock-contract surface the protocol depends on. All write
// operations are transactional: they return only after the transaction is
// confirmed, so a caller never advertises an unconfirmed lock as settled.
type Client interface {
	// Address is the wallet address this client signs with.
	Address() string

	// ContractAddress is the address of the lock contract, used as the
	// spender when managing token allowances.
	ContractAddress() string

	// CreateLock creates a new lock and returns its id once the creation
	// transaction is confirmed.
	CreateLock(ctx context.Context, params CreateLockParams) (string, error)

	// GetLock reads a lock. An unknown id yields a zero-valued Lock, not
	// an error.
	GetLock(ctx context.Context, lockID string) (Lock, error)

	// Withdraw claims a lock with the secret preimage.
	Withdraw(ctx context.Context, lockID string, preimage []byte) error

	// Refund returns an expired, unclaimed lock to its sender.
	Refund(ctx context.Context, lockID string) error

	// WatchWithdrawals subscribes to lock withdrawal events. The channel
	// closes when the context is cancelled.
	WatchWithdrawals(ctx context.Context) (<-chan WithdrawEvent, error)

	// WatchCreated subscribes to lock creation events.
	WatchCreated(ctx context.Context) (<-chan CreatedEvent, error)
}

// TokenClient is the token-contract surface needed to fund locks: the
// lock contract transfers token units from the wallet, so the wallet must
// hold balance and grant the lock contract an allowance first.
type TokenClient interface {
	BalanceOf(ctx context.Context, owner string) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
	IncreaseAllowance(ctx context.Context, spender string, amount *big.Int) error
}
