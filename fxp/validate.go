package fxp

import (
	"regexp"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

var hashPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

func validateInstruction(in crossborder.PaymentInstruction) error {
	if in.PaymentID == "" {
		return crossborder.Errorf(crossborder.ErrCodeValidation, "paymentId is required")
	}
	if in.Sender.WalletAddress == "" || in.Recipient.WalletAddress == "" {
		return crossborder.Errorf(crossborder.ErrCodeValidation, "sender and recipient wallet addresses are required")
	}
	if in.SenderSystemFx.WalletAddress == "" || in.RecipientSystemFx.WalletAddress == "" {
		return crossborder.Errorf(crossborder.ErrCodeValidation, "fx provider wallet addresses are required")
	}
	if in.SourceAmount == "" || in.TargetAmount == "" {
		return crossborder.Errorf(crossborder.ErrCodeValidation, "source and target amounts are required")
	}
	return nil
}

func validateHash(hash string) error {
	if !hashPattern.MatchString(hash) {
		return crossborder.Errorf(crossborder.ErrCodeValidation, "hashOfSecret must be a 32 byte hex digest, got %q", hash)
	}
	return nil
}
