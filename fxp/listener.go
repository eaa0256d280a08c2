package fxp

import (
	"context"
	"encoding/hex"
	"math/big"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// RunWithdrawListener consumes withdrawal events from the ledger until
// ctx is cancelled. Every outbound lock of this instance that gets
// withdrawn reveals the payment secret, which is then pushed one hop
// back along the route.
func (s *Service) RunWithdrawListener(ctx context.Context) error {
	events, err := s.ledger.WatchWithdrawals(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Str("wallet", s.Wallet()).Msg("withdrawal listener started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return crossborder.Errorf(crossborder.ErrCodeLedgerTx, "withdrawal event stream closed")
			}
			s.handleWithdrawal(ctx, ev)
		}
	}
}

func (s *Service) handleWithdrawal(ctx context.Context, ev ledger.WithdrawEvent) {
	rec, secret, ok := s.settleWithdrawal(ctx, ev)
	if !ok {
		return
	}
	// Propagate outside the per-payment lock: the upstream hop of an
	// intermediated route may be served by this same instance, and its
	// Completion handler takes the same lock.
	s.propagateSecret(ctx, rec, secret)
}

func (s *Service) settleWithdrawal(ctx context.Context, ev ledger.WithdrawEvent) (store.PaymentRecord, string, bool) {
	rec, err := s.outbound.ByLockID(ctx, ev.LockID)
	if err != nil {
		// Withdrawals of locks created by other parties also arrive here.
		s.log.Debug().Str("lockId", ev.LockID).Msg("withdrawal for a lock this instance did not create")
		return store.PaymentRecord{}, "", false
	}

	unlock := s.keys.lock(rec.PaymentID)
	defer unlock()

	// Re-read under the per-payment lock: a refund committing between
	// the lookup above and here must not be overwritten.
	rec, err = s.outbound.ByLockID(ctx, ev.LockID)
	if err != nil {
		s.log.Error().Err(err).Str("lockId", ev.LockID).Msg("re-reading payment record failed")
		return store.PaymentRecord{}, "", false
	}
	if rec.Status != store.StatusOpen {
		s.log.Debug().
			Str("lockId", ev.LockID).
			Str("status", rec.Status).
			Msg("withdrawal event for an already settled record")
		return store.PaymentRecord{}, "", false
	}

	secret := hex.EncodeToString(truncatePreimage(ev.Preimage, ev.SecretLength))
	if !crossborder.VerifySecret(secret, rec.Hash) {
		s.log.Error().
			Str("lockId", ev.LockID).
			Str("paymentId", rec.PaymentID).
			Msg("withdrawal preimage does not hash to the recorded hashlock")
		return store.PaymentRecord{}, "", false
	}

	if err := s.outbound.MarkWithdrawn(ctx, ev.LockID, secret); err != nil {
		s.log.Error().Err(err).Str("lockId", ev.LockID).Msg("recording withdrawal failed")
		return store.PaymentRecord{}, "", false
	}
	s.timers.cancel(ev.LockID)
	s.log.Info().
		Str("paymentId", rec.PaymentID).
		Str("lockId", ev.LockID).
		Msg("outbound lock withdrawn, secret revealed")
	return rec, secret, true
}

// propagateSecret pushes the revealed secret to the previous hop. The
// push is best effort: the upstream party's own refund timer bounds its
// exposure if the message never arrives.
func (s *Service) propagateSecret(ctx context.Context, rec store.PaymentRecord, secret string) {
	in, err := crossborder.DecodeInstruction(rec.Instruction)
	if err != nil {
		s.log.Error().Err(err).Str("paymentId", rec.PaymentID).Msg("decoding stored instruction failed")
		return
	}
	host, err := crossborder.CompletionForwardHost(in, s.Wallet())
	if err != nil {
		// Recipient-side locks have no upstream fx party to notify.
		s.log.Debug().Str("paymentId", rec.PaymentID).Msg("no upstream hop for revealed secret")
		return
	}
	if _, err := s.hub.Completion(ctx, host, crossborder.CompletionRequest{
		PaymentInstruction: in,
		Secret:             secret,
	}); err != nil {
		s.log.Error().Err(err).
			Str("paymentId", rec.PaymentID).
			Str("forwardHost", host).
			Msg("forwarding revealed secret failed")
		return
	}
	s.log.Info().
		Str("paymentId", rec.PaymentID).
		Str("forwardHost", host).
		Msg("secret forwarded upstream")
}

func truncatePreimage(preimage []byte, secretLength int) []byte {
	if secretLength > 0 && secretLength < len(preimage) {
		return preimage[:secretLength]
	}
	return crossborder.TruncateSecret(preimage)
}

// RunAllowanceKeeper periodically tops the lock contract's token
// allowance back up to the configured target once it has dropped below
// half of it.
func (s *Service) RunAllowanceKeeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.topUpAllowance(ctx); err != nil {
			s.log.Error().Err(err).Msg("allowance top-up failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) topUpAllowance(ctx context.Context) error {
	allowance, err := s.token.Allowance(ctx, s.Wallet(), s.ledger.ContractAddress())
	if err != nil {
		return err
	}
	half := new(big.Int).Rsh(s.cfg.TargetAllowance, 1)
	if allowance.Cmp(half) >= 0 {
		return nil
	}
	delta := new(big.Int).Sub(s.cfg.TargetAllowance, allowance)
	if err := s.token.IncreaseAllowance(ctx, s.ledger.ContractAddress(), delta); err != nil {
		return err
	}
	s.log.Info().
		Str("allowance", allowance.String()).
		Str("delta", delta.String()).
		Msg("token allowance topped up")
	return nil
}
