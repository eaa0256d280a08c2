// Package psp implements the originating service: it generates the
// secret/hash pair at payment discovery, tracks the sender's settlement
// records, back-fills lock ids from creation events and serves secrets
// to authenticated recipients.
package psp

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// Deps are one originating-service instance's collaborators.
type Deps struct {
	Ledger  ledger.Client
	Records *store.OriginStore
	Logger  zerolog.Logger
}

// Config tunes the service.
type Config struct {
	// LockMaxDuration returns the maximum lock duration advertised at
	// discovery. Read on every call so configuration edits apply without
	// restart.
	LockMaxDuration func() time.Duration
}

// Service is one originating-service instance.
type Service struct {
	ledger  ledger.Client
	records *store.OriginStore
	cfg     Config
	log     zerolog.Logger
}

// New builds a Service.
func New(deps Deps, cfg Config) *Service {
	if cfg.LockMaxDuration == nil {
		cfg.LockMaxDuration = func() time.Duration { return 60 * time.Minute }
	}
	return &Service{
		ledger:  deps.Ledger,
		records: deps.Records,
		cfg:     cfg,
		log:     deps.Logger,
	}
}

// Discovery answers a payment discovery: it generates (or, for a
// replayed paymentId, re-returns) the secret/hash pair the sender must
// lock against and advertises the maximum lock duration.
func (s *Service) Discovery(ctx context.Context, req crossborder.DiscoveryRequest) (crossborder.DiscoveryResponse, error) {
	in := req.PaymentInstruction
	if in.PaymentID == "" {
		return crossborder.DiscoveryResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation, "paymentId is required")
	}
	if in.Recipient.WalletAddress == "" || in.Sender.WalletAddress == "" {
		return crossborder.DiscoveryResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation,
			"sender and recipient wallet addresses are required")
	}
	amount, err := crossborder.AmountToUnits(in.TargetAmount, in.TargetCurrency)
	if err != nil {
		return crossborder.DiscoveryResponse{}, err
	}

	duration := s.cfg.LockMaxDuration()

	// A replayed discovery must hand back the original hash: the sender
	// retrying the call must not end up with two competing secrets for
	// one payment.
	if existing, err := s.records.ByPaymentID(ctx, in.PaymentID); err == nil {
		return crossborder.DiscoveryResponse{
			HashOfSecret:    existing.Hash,
			LockMaxDuration: duration.Milliseconds(),
			PaymentID:       in.PaymentID,
		}, nil
	} else if crossborder.CodeOf(err) != crossborder.ErrCodeUnknownPayment {
		return crossborder.DiscoveryResponse{}, err
	}

	pair, err := crossborder.NewSecretHashPair()
	if err != nil {
		return crossborder.DiscoveryResponse{}, err
	}
	if err := s.records.Create(ctx, store.OriginRecord{
		PaymentID:      in.PaymentID,
		TargetAddress:  strings.ToLower(in.Recipient.WalletAddress),
		SourceAddress:  strings.ToLower(in.Sender.WalletAddress),
		SourceCurrency: strings.ToUpper(in.SourceCurrency),
		Amount:         amount.Int64(),
		Hash:           pair.Hash,
		Secret:         pair.Secret,
	}); err != nil {
		return crossborder.DiscoveryResponse{}, err
	}
	s.log.Info().
		Str("paymentId", in.PaymentID).
		Str("recipient", in.Recipient.WalletAddress).
		Msg("payment discovered, secret generated")

	return crossborder.DiscoveryResponse{
		HashOfSecret:    pair.Hash,
		LockMaxDuration: duration.Milliseconds(),
		PaymentID:       in.PaymentID,
	}, nil
}

// RunCreatedListener consumes lock creation events and back-fills the
// lock id on the record matching the event's hashlock and receiver.
func (s *Service) RunCreatedListener(ctx context.Context) error {
	events, err := s.ledger.WatchCreated(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Msg("lock creation listener started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return crossborder.Errorf(crossborder.ErrCodeLedgerTx, "creation event stream closed")
			}
			hash := crossborder.NormalizeHex(ev.Hashlock)
			receiver := strings.ToLower(ev.Receiver)
			if err := s.records.AttachLockID(ctx, hash, receiver, ev.LockID); err != nil {
				s.log.Error().Err(err).Str("lockId", ev.LockID).Msg("back-filling lock id failed")
				continue
			}
			s.log.Debug().
				Str("lockId", ev.LockID).
				Str("receiver", receiver).
				Msg("lock id back-filled")
		}
	}
}
