package fxp

import (
	"context"
	"math/big"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// Setup creates this instance's outbound lock for the payment. The call
// blocks until the lock transaction is confirmed on the ledger, so a
// successful response means the lock exists. An intermediate role also
// notifies the next hop before returning; a failed notification fails
// the whole call even though the lock stays on the ledger, leaving the
// refund timer to unwind it.
func (s *Service) Setup(ctx context.Context, req crossborder.SetupRequest) (crossborder.SetupResponse, error) {
	in := req.PaymentInstruction
	if err := validateInstruction(in); err != nil {
		return crossborder.SetupResponse{}, err
	}
	if err := validateHash(req.HashOfSecret); err != nil {
		return crossborder.SetupResponse{}, err
	}

	leg, err := crossborder.ClassifySetup(in, s.Wallet())
	if err != nil {
		return crossborder.SetupResponse{}, err
	}
	amount, err := crossborder.AmountToUnits(leg.Amount, leg.Currency)
	if err != nil {
		return crossborder.SetupResponse{}, err
	}

	unlock := s.keys.lock(in.PaymentID)
	defer unlock()

	if _, err := s.outbound.ByPaymentID(ctx, in.PaymentID); err == nil {
		return crossborder.SetupResponse{}, crossborder.Errorf(crossborder.ErrCodeDuplicatePayment,
			"payment %s already has an outbound lock", in.PaymentID)
	} else if crossborder.CodeOf(err) != crossborder.ErrCodeUnknownPayment {
		return crossborder.SetupResponse{}, err
	}

	if err := s.ensureFunding(ctx, amount); err != nil {
		return crossborder.SetupResponse{}, err
	}

	expiry := crossborder.LockExpiry(time.Now(), s.cfg.LockDuration(), s.cfg.HopMargin, leg.DownstreamHops)
	lockID, err := s.ledger.CreateLock(ctx, ledger.CreateLockParams{
		Receiver: leg.Receiver.WalletAddress,
		Hashlock: req.HashOfSecret,
		Timelock: expiry,
		Token:    s.cfg.TokenAddress,
		Amount:   amount,
	})
	if err != nil {
		return crossborder.SetupResponse{}, crossborder.WrapError(crossborder.ErrCodeLedgerTx,
			"creating lock for payment "+in.PaymentID, err)
	}
	s.log.Info().
		Str("paymentId", in.PaymentID).
		Str("lockId", lockID).
		Str("role", leg.Role.String()).
		Str("receiver", leg.Receiver.WalletAddress).
		Str("amount", amount.String()).
		Time("timelock", expiry).
		Msg("outbound lock created")

	encoded, err := in.Encode()
	if err != nil {
		return crossborder.SetupResponse{}, err
	}
	if err := s.outbound.Create(ctx, store.PaymentRecord{
		LockID:             lockID,
		PaymentID:          in.PaymentID,
		Hash:               crossborder.NormalizeHex(req.HashOfSecret),
		Amount:             amount.Int64(),
		CounterpartyWallet: leg.Receiver.WalletAddress,
		Instruction:        encoded,
		Status:             store.StatusOpen,
	}); err != nil {
		return crossborder.SetupResponse{}, err
	}

	s.armRefundTimer(lockID, in.PaymentID, expiry)

	if leg.NotifyNext {
		locked := crossborder.LockedRequest{
			PaymentInstruction:      in,
			HashOfSecret:            req.HashOfSecret,
			SenderSystemLockTimeout: expiry.Format(time.RFC3339),
			LockID:                  lockID,
		}
		if err := s.hub.Locked(ctx, leg.NextHost, locked); err != nil {
			s.log.Error().Err(err).
				Str("paymentId", in.PaymentID).
				Str("nextHost", leg.NextHost).
				Msg("notifying next hop of new lock failed")
			return crossborder.SetupResponse{}, err
		}
	}

	return crossborder.SetupResponse{PaymentID: in.PaymentID}, nil
}

// ensureFunding rejects locks the wallet cannot cover and tops the lock
// contract's allowance back up to the configured target when it has
// dropped below the requested amount.
func (s *Service) ensureFunding(ctx context.Context, amount *big.Int) error {
	balance, err := s.token.BalanceOf(ctx, s.Wallet())
	if err != nil {
		return crossborder.WrapError(crossborder.ErrCodeLedgerTx, "reading token balance", err)
	}
	if balance.Cmp(amount) < 0 {
		return crossborder.Errorf(crossborder.ErrCodeInsufficientFunds,
			"balance %s below requested lock amount %s", balance, amount)
	}
	allowance, err := s.token.Allowance(ctx, s.Wallet(), s.ledger.ContractAddress())
	if err != nil {
		return crossborder.WrapError(crossborder.ErrCodeLedgerTx, "reading token allowance", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	delta := new(big.Int).Sub(s.cfg.TargetAllowance, allowance)
	if delta.Sign() <= 0 {
		delta = new(big.Int).Set(amount)
	}
	if err := s.token.IncreaseAllowance(ctx, s.ledger.ContractAddress(), delta); err != nil {
		return crossborder.WrapError(crossborder.ErrCodeLedgerTx, "increasing token allowance", err)
	}
	s.log.Info().Str("delta", delta.String()).Msg("token allowance topped up")
	return nil
}
