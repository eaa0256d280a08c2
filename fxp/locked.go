package fxp

import (
	"context"
	"math/big"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// Locked handles the notification that an upstream party claims to have
// locked funds toward this wallet. Nothing in the message is trusted:
// the referenced lock is read back from the ledger and every field is
// checked against what the payment instruction implies before this
// instance commits its own funds by relaying Setup downstream.
func (s *Service) Locked(ctx context.Context, req crossborder.LockedRequest) error {
	in := req.PaymentInstruction
	if err := validateInstruction(in); err != nil {
		return err
	}
	if err := validateHash(req.HashOfSecret); err != nil {
		return err
	}
	if req.LockID == "" {
		return crossborder.Errorf(crossborder.ErrCodeValidation, "lockId is required")
	}

	leg, err := crossborder.ClassifyLocked(in, s.Wallet())
	if err != nil {
		return err
	}
	wantAmount, err := crossborder.AmountToUnits(leg.Amount, leg.Currency)
	if err != nil {
		return err
	}
	wantTimelock, err := time.Parse(time.RFC3339, req.SenderSystemLockTimeout)
	if err != nil {
		return crossborder.WrapError(crossborder.ErrCodeValidation,
			"invalid senderSystemLockTimeout "+req.SenderSystemLockTimeout, err)
	}

	if err := s.acceptInboundLock(ctx, req, leg, wantAmount, wantTimelock); err != nil {
		return err
	}

	// Relay outside the per-payment lock: the downstream role of an
	// intermediated route may be served by this same instance, and its
	// Setup handler takes the same lock. The persisted record above
	// keeps a replayed notification from relaying twice.
	resp, err := s.hub.Setup(ctx, leg.ForwardHost, crossborder.SetupRequest{
		PaymentInstruction:      in,
		HashOfSecret:            req.HashOfSecret,
		SenderSystemLockTimeout: req.SenderSystemLockTimeout,
	})
	if err != nil {
		return err
	}
	if resp.PaymentID != in.PaymentID {
		return crossborder.Errorf(crossborder.ErrCodeRelay,
			"setup relay acknowledged payment %q, want %q", resp.PaymentID, in.PaymentID)
	}
	return nil
}

// acceptInboundLock verifies the announced lock against the ledger and
// persists it, holding the per-payment lock for the duration.
func (s *Service) acceptInboundLock(ctx context.Context, req crossborder.LockedRequest, leg crossborder.LockedLeg, wantAmount *big.Int, wantTimelock time.Time) error {
	in := req.PaymentInstruction

	unlock := s.keys.lock(in.PaymentID)
	defer unlock()

	lock, err := s.ledger.GetLock(ctx, req.LockID)
	if err != nil {
		return crossborder.WrapError(crossborder.ErrCodeLedgerTx, "reading lock "+req.LockID, err)
	}
	if err := verifyInboundLock(lock, leg, req.HashOfSecret, wantAmount, wantTimelock); err != nil {
		s.log.Warn().Err(err).
			Str("paymentId", in.PaymentID).
			Str("lockId", req.LockID).
			Msg("inbound lock rejected")
		return err
	}

	encoded, err := in.Encode()
	if err != nil {
		return err
	}
	if err := s.inbound.Create(ctx, store.PaymentRecord{
		LockID:             req.LockID,
		PaymentID:          in.PaymentID,
		Hash:               crossborder.NormalizeHex(req.HashOfSecret),
		Amount:             wantAmount.Int64(),
		CounterpartyWallet: leg.Sender.WalletAddress,
		Instruction:        encoded,
		Status:             store.StatusOpen,
	}); err != nil {
		// A replay of an already verified notification must not trigger a
		// second downstream relay.
		return err
	}
	s.log.Info().
		Str("paymentId", in.PaymentID).
		Str("lockId", req.LockID).
		Str("role", leg.Role.String()).
		Str("sender", leg.Sender.WalletAddress).
		Msg("inbound lock verified")
	return nil
}

// verifyInboundLock checks the on-chain lock against the expectation
// derived from the payment instruction. The first failing check wins;
// later fields are not inspected.
func verifyInboundLock(lock ledger.Lock, leg crossborder.LockedLeg, hash string, amount *big.Int, timelock time.Time) error {
	if !lock.Exists() {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch, "lock %s not found on ledger", lock.ID)
	}
	// A settled lock can never pay out again; committing funds against
	// it would strand them until the refund timer.
	if lock.Terminal() {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch,
			"lock %s already settled (withdrawn=%t refunded=%t)", lock.ID, lock.Withdrawn, lock.Refunded)
	}
	if !sameAddress(lock.Sender, leg.Sender.WalletAddress) {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch,
			"lock sender %s, want %s", lock.Sender, leg.Sender.WalletAddress)
	}
	if !sameAddress(lock.Receiver, leg.Receiver.WalletAddress) {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch,
			"lock receiver %s, want %s", lock.Receiver, leg.Receiver.WalletAddress)
	}
	if lock.Amount == nil || lock.Amount.Cmp(amount) != 0 {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch,
			"lock amount %v, want %s", lock.Amount, amount)
	}
	if crossborder.NormalizeHex(lock.Hashlock) != crossborder.NormalizeHex(hash) {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch,
			"lock hashlock %s does not match hashOfSecret", lock.Hashlock)
	}
	if !lock.Timelock.Equal(timelock) {
		return crossborder.Errorf(crossborder.ErrCodeLockMismatch,
			"lock timelock %s, want %s", lock.Timelock.UTC().Format(time.RFC3339), timelock.UTC().Format(time.RFC3339))
	}
	return nil
}

func sameAddress(a, b string) bool {
	return crossborder.NormalizeHex(a) == crossborder.NormalizeHex(b)
}
