package fxp

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

// refundTimers tracks one pending fail-safe refund per outbound lock.
type refundTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newRefundTimers() *refundTimers {
	return &refundTimers{timers: make(map[string]*time.Timer)}
}

func (r *refundTimers) set(lockID string, t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.timers[lockID]; ok {
		old.Stop()
	}
	r.timers[lockID] = t
}

func (r *refundTimers) cancel(lockID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[lockID]; ok {
		t.Stop()
		delete(r.timers, lockID)
	}
}

// armRefundTimer schedules a refund attempt shortly after the lock's
// timelock expires. The grace period leaves room for a withdrawal racing
// the expiry to land first.
func (s *Service) armRefundTimer(lockID, paymentID string, expiry time.Time) {
	delay := time.Until(expiry) + s.cfg.RefundGrace
	if delay < 0 {
		delay = 0
	}
	s.timers.set(lockID, time.AfterFunc(delay, func() {
		s.fireRefund(context.Background(), lockID, paymentID)
	}))
}

// fireRefund re-reads the lock before acting: a withdrawal may have
// landed between the timer being armed and firing, in which case the
// refund is a no-op. A failed refund transaction is retried on a fresh
// timer.
func (s *Service) fireRefund(ctx context.Context, lockID, paymentID string) {
	unlock := s.keys.lock(paymentID)
	defer unlock()

	s.timers.cancel(lockID)

	lock, err := s.ledger.GetLock(ctx, lockID)
	if err != nil {
		s.log.Error().Err(err).Str("lockId", lockID).Msg("reading lock before refund failed, retrying")
		s.rearmRefund(lockID, paymentID)
		return
	}
	if !lock.Exists() {
		s.log.Warn().Str("lockId", lockID).Msg("refund timer fired for unknown lock")
		return
	}
	if lock.Terminal() {
		s.log.Debug().
			Str("lockId", lockID).
			Bool("withdrawn", lock.Withdrawn).
			Bool("refunded", lock.Refunded).
			Msg("lock already settled, refund skipped")
		return
	}

	if err := s.ledger.Refund(ctx, lockID); err != nil {
		s.log.Error().Err(err).Str("lockId", lockID).Msg("refund transaction failed, retrying")
		s.rearmRefund(lockID, paymentID)
		return
	}
	if err := s.outbound.MarkRefunded(ctx, lockID); err != nil {
		s.log.Error().Err(err).Str("lockId", lockID).Msg("recording refund failed")
	}
	s.log.Info().
		Str("paymentId", paymentID).
		Str("lockId", lockID).
		Msg("expired lock refunded")
}

// RecoverRefundTimers re-arms fail-safe timers for every outbound lock
// that was still open when the process last stopped. Locks that settled
// in the meantime have their records brought up to date instead.
func (s *Service) RecoverRefundTimers(ctx context.Context) error {
	open, err := s.outbound.Open(ctx)
	if err != nil {
		return err
	}
	for _, rec := range open {
		lock, err := s.ledger.GetLock(ctx, rec.LockID)
		if err != nil {
			return err
		}
		switch {
		case !lock.Exists():
			s.log.Warn().Str("lockId", rec.LockID).Msg("open record references unknown lock")
		case lock.Withdrawn:
			secret := crossborder.NormalizeHex(hex.EncodeToString(truncatePreimage(lock.Preimage, lock.SecretLength)))
			if err := s.outbound.MarkWithdrawn(ctx, rec.LockID, secret); err != nil {
				return err
			}
		case lock.Refunded:
			if err := s.outbound.MarkRefunded(ctx, rec.LockID); err != nil {
				return err
			}
		default:
			s.armRefundTimer(rec.LockID, rec.PaymentID, lock.Timelock)
		}
	}
	if len(open) > 0 {
		s.log.Info().Int("count", len(open)).Msg("recovered open outbound locks")
	}
	return nil
}

func (s *Service) rearmRefund(lockID, paymentID string) {
	s.timers.set(lockID, time.AfterFunc(s.cfg.RefundRetry, func() {
		s.fireRefund(context.Background(), lockID, paymentID)
	}))
}
