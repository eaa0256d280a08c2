package fxp

import (
	"context"
	"encoding/hex"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// Completion receives the revealed secret from downstream and uses it to
// withdraw this instance's inbound lock. Replays of an already withdrawn
// payment succeed without touching the ledger again.
func (s *Service) Completion(ctx context.Context, req crossborder.CompletionRequest) (crossborder.CompletionResponse, error) {
	in := req.PaymentInstruction
	if in.PaymentID == "" {
		return crossborder.CompletionResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation, "paymentId is required")
	}
	if req.Secret == "" {
		return crossborder.CompletionResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation, "secret is required")
	}

	unlock := s.keys.lock(in.PaymentID)
	defer unlock()

	rec, err := s.inbound.ByPaymentID(ctx, in.PaymentID)
	if err != nil {
		return crossborder.CompletionResponse{}, err
	}
	if !crossborder.VerifySecret(req.Secret, rec.Hash) {
		return crossborder.CompletionResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation,
			"secret does not hash to the lock's hashlock")
	}

	lock, err := s.ledger.GetLock(ctx, rec.LockID)
	if err != nil {
		return crossborder.CompletionResponse{}, crossborder.WrapError(crossborder.ErrCodeLedgerTx,
			"reading lock "+rec.LockID, err)
	}
	switch {
	case lock.Withdrawn:
		if rec.Status != store.StatusWithdrawn {
			if err := s.inbound.MarkWithdrawn(ctx, rec.LockID, crossborder.NormalizeHex(req.Secret)); err != nil {
				return crossborder.CompletionResponse{}, err
			}
		}
		return crossborder.CompletionResponse{PaymentID: in.PaymentID}, nil
	case lock.Refunded:
		return crossborder.CompletionResponse{}, crossborder.Errorf(crossborder.ErrCodeLedgerTx,
			"lock %s already refunded, secret arrived too late", rec.LockID)
	}

	preimage, err := hex.DecodeString(crossborder.NormalizeHex(req.Secret))
	if err != nil {
		return crossborder.CompletionResponse{}, crossborder.WrapError(crossborder.ErrCodeValidation,
			"secret is not valid hex", err)
	}
	if err := s.ledger.Withdraw(ctx, rec.LockID, preimage); err != nil {
		return crossborder.CompletionResponse{}, crossborder.WrapError(crossborder.ErrCodeLedgerTx,
			"withdrawing lock "+rec.LockID, err)
	}
	if err := s.inbound.MarkWithdrawn(ctx, rec.LockID, crossborder.NormalizeHex(req.Secret)); err != nil {
		return crossborder.CompletionResponse{}, err
	}
	s.log.Info().
		Str("paymentId", in.PaymentID).
		Str("lockId", rec.LockID).
		Msg("inbound lock withdrawn")
	return crossborder.CompletionResponse{PaymentID: in.PaymentID}, nil
}
